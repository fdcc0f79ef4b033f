package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Normalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   PageRequest
		want PageRequest
	}{
		{"zero values use defaults", PageRequest{}, PageRequest{Page: 1, PageSize: DefaultPageSize}},
		{"negative page", PageRequest{Page: -3, PageSize: 10}, PageRequest{Page: 1, PageSize: 10}},
		{"oversized page", PageRequest{Page: 2, PageSize: 500}, PageRequest{Page: 2, PageSize: MaxPageSize}},
		{"unchanged", PageRequest{Page: 4, PageSize: 25}, PageRequest{Page: 4, PageSize: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestNewPagedResult_TotalPages(t *testing.T) {
	req := PageRequest{Page: 2, PageSize: 10}

	assert.Equal(t, 3, NewPagedResult([]int{1}, 25, req).TotalPages)
	assert.Equal(t, 2, NewPagedResult([]int{1}, 20, req).TotalPages)
	assert.Equal(t, 0, NewPagedResult[int](nil, 0, req).TotalPages)
	assert.NotNil(t, NewPagedResult[int](nil, 0, req).Items)
	assert.Equal(t, 10, req.Offset())
}
