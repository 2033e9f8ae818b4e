package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryRequest struct {
	Question   string `json:"question" validate:"required,notblank"`
	MaxResults int    `json:"max_results" validate:"gte=0"`
}

func TestValidateWithLang(t *testing.T) {
	tests := []struct {
		name      string
		req       queryRequest
		wantField string
		wantTag   string
	}{
		{name: "valid", req: queryRequest{Question: "What is a lease?"}},
		{name: "missing question", req: queryRequest{}, wantField: "question", wantTag: "required"},
		{name: "blank question", req: queryRequest{Question: "  \n"}, wantField: "question", wantTag: "notblank"},
		{name: "negative max_results", req: queryRequest{Question: "q", MaxResults: -1}, wantField: "max_results", wantTag: "gte"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verrs := v.ValidateWithLang(tt.req, LangEN)
			if tt.wantField == "" {
				assert.Nil(t, verrs)
				return
			}
			require.True(t, verrs.HasErrors())
			assert.Equal(t, tt.wantField, verrs.Errors[0].Field)
			assert.Equal(t, tt.wantTag, verrs.Errors[0].Tag)
			assert.NotEmpty(t, verrs.First())
		})
	}
}

func TestNotBlankTranslation(t *testing.T) {
	verrs := Global().ValidateWithLang(queryRequest{Question: " "}, LangEN)
	require.NotNil(t, verrs)
	assert.Equal(t, "question must not be blank", verrs.First())
	assert.Equal(t, "validation failed: question must not be blank", verrs.Error())

	zhErrs := Global().ValidateWithLang(queryRequest{Question: " "}, LangZH)
	require.NotNil(t, zhErrs)
	assert.Equal(t, "question不能为空白", zhErrs.First())
}
