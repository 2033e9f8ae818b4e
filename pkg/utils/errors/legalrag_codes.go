package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Legal RAG 服务错误码 (服务代码 21)。
var (
	// 上传内容错误 (类别 01)
	ErrUnsupportedFormat = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Unsupported file format", "不支持的文件格式"))
	ErrMissingColumns = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 2),
		http.StatusBadRequest, codes.InvalidArgument, "Missing required columns", "缺少必需的列"))
	ErrMissingFile = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 3),
		http.StatusBadRequest, codes.InvalidArgument, "File is required", "缺少上传文件"))
	ErrFieldTooLong = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 4),
		http.StatusBadRequest, codes.InvalidArgument, "Field exceeds storage limit", "字段超过存储长度上限"))

	// 资源错误 (类别 04)
	ErrResourceNotFound = Register(New(MakeCode(ServiceLegalRAG, CategoryResource, 1),
		http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))

	// 处理错误 (类别 07)
	ErrDocumentProcess = Register(New(MakeCode(ServiceLegalRAG, CategoryInternal, 1),
		http.StatusInternalServerError, codes.Internal, "Error processing document", "文档处理失败"))
	ErrFAQProcess = Register(New(MakeCode(ServiceLegalRAG, CategoryInternal, 2),
		http.StatusInternalServerError, codes.Internal, "Error processing FAQ", "FAQ 处理失败"))
	ErrQueryFailed = Register(New(MakeCode(ServiceLegalRAG, CategoryInternal, 3),
		http.StatusInternalServerError, codes.Internal, "Error processing query", "查询失败"))
	ErrStatsFailed = Register(New(MakeCode(ServiceLegalRAG, CategoryInternal, 4),
		http.StatusInternalServerError, codes.Internal, "Error getting stats", "获取统计信息失败"))
	ErrDeleteFailed = Register(New(MakeCode(ServiceLegalRAG, CategoryInternal, 5),
		http.StatusInternalServerError, codes.Internal, "Error deleting resource", "删除资源失败"))
	ErrListFailed = Register(New(MakeCode(ServiceLegalRAG, CategoryInternal, 6),
		http.StatusInternalServerError, codes.Internal, "Error listing resources", "获取资源列表失败"))

	// 上游服务错误 (类别 10)
	ErrAnswerGeneration = Register(New(MakeCode(ServiceLegalRAG, CategoryNetwork, 1),
		http.StatusInternalServerError, codes.Unavailable, "Answer generation failed", "答案生成失败"))
	ErrStoreWrite = Register(New(MakeCode(ServiceLegalRAG, CategoryNetwork, 2),
		http.StatusInternalServerError, codes.Unavailable, "Vector store write failed", "向量库写入失败"))
	ErrStoreUnavailable = Register(New(MakeCode(ServiceLegalRAG, CategoryNetwork, 3),
		http.StatusInternalServerError, codes.Unavailable, "Vector store unavailable", "向量库不可用"))
)
