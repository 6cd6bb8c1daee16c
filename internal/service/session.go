package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/google/uuid"

	"github.com/Skotchmaster/accounts/internal/models"
	"github.com/Skotchmaster/accounts/internal/transport"
	"github.com/Skotchmaster/accounts/pkg/logging"
	"github.com/Skotchmaster/accounts/pkg/tokens"
	"github.com/Skotchmaster/accounts/pkg/tracing"
)

// issueTokens signs a fresh pair for acc and stores the refresh token,
// replacing any earlier one.
func (s *AccountService) issueTokens(ctx context.Context, acc *models.Account) (*LoginResult, error) {
	var res *LoginResult
	err := s.Tracer.Run(ctx, "issue_tokens", func(ctx context.Context, sp *tracing.Span) error {
		sp.SetAccountID(acc.ID)

		access, accessExp, err := s.Tokens.IssueAccessToken(acc.ID.String(), tokens.AccessClaims{
			UserName: acc.UserName,
			Email:    acc.Email,
		})
		if err != nil {
			return internal("issue access token", err)
		}
		refresh, refreshExp, err := s.Tokens.IssueRefreshToken(acc.ID.String())
		if err != nil {
			return internal("issue refresh token", err)
		}

		err = s.saveAccount(ctx, acc.ID, func(ctx context.Context) error {
			return s.Repo.SetRefreshToken(ctx, acc.ID, refresh)
		})
		if err != nil {
			return err
		}
		acc.RefreshToken = refresh

		res = &LoginResult{
			Account:      acc.Redacted(),
			AccessToken:  access,
			RefreshToken: refresh,
			AccessExp:    accessExp,
			RefreshExp:   refreshExp,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = internal("issue tokens", err)
		}
		return nil, err
	}
	return res, nil
}

// Refresh trades a valid refresh token for a new pair. The presented token
// must be the one currently stored for the account, so logout or a newer
// login revokes it. Every rejection is ErrUnauthorized.
func (s *AccountService) Refresh(ctx context.Context, req transport.RefreshRequest) (res *LoginResult, err error) {
	ctx, span := s.Tracer.Start(ctx, "refresh_session")
	defer finish(span, &err)
	l := logging.WithTrace(ctx, logging.FromContext(ctx)).With("svc", "accounts.refresh")

	var accountID uuid.UUID
	err = s.Tracer.Run(ctx, "verify_refresh_token", func(ctx context.Context, sp *tracing.Span) error {
		claims, err := s.Tokens.Verify(req.RefreshToken, tokens.TypeRefresh)
		if err != nil {
			return ErrUnauthorized
		}
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return ErrUnauthorized
		}
		accountID = id
		sp.SetAccountID(id)
		return nil
	})
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid refresh token")
		return nil, err
	}

	acc, err := s.findCaller(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		l.Warn("refresh_failed", "reason", "find account", "error", err)
		return nil, err
	}

	err = s.Tracer.Run(ctx, "compare_refresh_token", func(ctx context.Context, sp *tracing.Span) error {
		stored := acc.RefreshToken
		if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(req.RefreshToken)) != 1 {
			return ErrUnauthorized
		}
		sp.SetAccountID(acc.ID)
		return nil
	})
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "refresh token revoked", "account_id", acc.ID.String())
		return nil, err
	}

	res, err = s.issueTokens(ctx, acc)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	l.Info("refresh_successful", "account_id", acc.ID.String())
	return res, nil
}
