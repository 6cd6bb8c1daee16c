package service

import (
	"context"
	"errors"

	"github.com/Skotchmaster/accounts/internal/transport"
	"github.com/Skotchmaster/accounts/internal/util"
	"github.com/Skotchmaster/accounts/pkg/logging"
	"github.com/Skotchmaster/accounts/pkg/tracing"
)

var errNoDirectory = errors.New("account directory is not configured")

type SearchRequest struct {
	Query string
	Page  int
	Size  int
}

// Search looks accounts up by username or email in the directory.
func (s *AccountService) Search(ctx context.Context, req SearchRequest) (res *transport.SearchResponse, err error) {
	ctx, span := s.Tracer.Start(ctx, "search_accounts")
	defer finish(span, &err)
	l := logging.WithTrace(ctx, logging.FromContext(ctx)).With("svc", "accounts.search")

	err = s.Tracer.Run(ctx, "validate_input", func(ctx context.Context, _ *tracing.Span) error {
		return requireFields(field{"q", req.Query})
	})
	if err != nil {
		l.Warn("search_failed", "status", 400, "reason", "invalid input", "error", err)
		return nil, err
	}

	from, size := util.Calculate(req.Page, req.Size)
	err = s.Tracer.Run(ctx, "query_directory", func(ctx context.Context, sp *tracing.Span) error {
		if s.Directory == nil {
			return internal("query directory", errNoDirectory)
		}
		accounts, total, err := s.Directory.Search(ctx, req.Query, from, size)
		if err != nil {
			return internal("query directory", err)
		}
		if accounts == nil {
			accounts = []transport.Account{}
		}
		res = &transport.SearchResponse{
			Accounts: accounts,
			Total:    total,
			Page:     from/size + 1,
			Size:     size,
		}
		return nil
	})
	if err != nil {
		l.Error("search_failed", "status", 500, "error", err)
		return nil, err
	}

	l.Debug("search_successful", "total", res.Total)
	return res, nil
}
