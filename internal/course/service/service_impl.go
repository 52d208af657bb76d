package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	coursedomain "github.com/smallbiznis/coursepass/internal/course/domain"
	"github.com/smallbiznis/coursepass/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo coursedomain.Repository
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo coursedomain.Repository
}

func NewService(p Params) coursedomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("course.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, req coursedomain.ListRequest) (coursedomain.ListResponse, error) {
	var afterID snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return coursedomain.ListResponse{}, coursedomain.ErrInvalidCursor
		}
		afterID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return coursedomain.ListResponse{}, coursedomain.ErrInvalidCursor
		}
	}

	limit := req.Limit()
	courses, err := s.repo.List(ctx, s.db, afterID, limit+1)
	if err != nil {
		return coursedomain.ListResponse{}, err
	}

	var encodeErr error
	courses, pageInfo := pagination.BuildCursorPageInfo(courses, limit, func(c *coursedomain.Course) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: c.ID.String()})
		if err != nil {
			encodeErr = err
		}
		return token
	})
	if encodeErr != nil {
		return coursedomain.ListResponse{}, encodeErr
	}
	if courses == nil {
		courses = []*coursedomain.Course{}
	}

	return coursedomain.ListResponse{Courses: courses, PageInfo: pageInfo}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*coursedomain.Course, error) {
	courseID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || courseID == 0 {
		return nil, coursedomain.ErrInvalidCourseID
	}

	course, err := s.repo.FindByID(ctx, s.db, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, coursedomain.ErrNotFound
	}
	return course, nil
}
