package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Common errors (service 00).
var (
	OK = &Errno{Code: 0, HTTP: http.StatusOK, GRPCCode: codes.OK, MessageEN: "success", MessageZH: "成功"}

	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrValidation = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2),
		http.StatusUnprocessableEntity, codes.InvalidArgument, "Validation failed", "参数校验失败"))
	ErrPayloadTooLarge = Register(New(MakeCode(ServiceCommon, CategoryRequest, 3),
		http.StatusRequestEntityTooLarge, codes.ResourceExhausted, "Request body too large", "请求体过大"))

	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 1),
		http.StatusNotFound, codes.NotFound, "Not found", "资源不存在"))
	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 2),
		http.StatusNotFound, codes.NotFound, "Route not found", "路由不存在"))

	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1),
		http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrPanic = Register(New(MakeCode(ServiceCommon, CategoryInternal, 2),
		http.StatusInternalServerError, codes.Internal, "Internal server panic", "服务器内部异常"))

	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 1),
		http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))

	ErrRequestTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1),
		http.StatusRequestTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))
)
