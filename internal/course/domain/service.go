package domain

import (
	"context"

	"github.com/smallbiznis/coursepass/pkg/db/pagination"
)

type Service interface {
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	GetByID(ctx context.Context, id string) (*Course, error)
}

type ListRequest struct {
	pagination.Pagination
}

type ListResponse struct {
	Courses  []*Course            `json:"courses"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}
