package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/accounts/internal/models"
	"github.com/Skotchmaster/accounts/internal/repo"
	"github.com/Skotchmaster/accounts/internal/transport"
	"github.com/Skotchmaster/accounts/pkg/hash"
	"github.com/Skotchmaster/accounts/pkg/logging"
	"github.com/Skotchmaster/accounts/pkg/tokens"
	"github.com/Skotchmaster/accounts/pkg/tracing"
)

type AccountRepo interface {
	FindOne(ctx context.Context, f repo.Filter, opts ...repo.Option) (*models.Account, error)
	FindByID(ctx context.Context, id uuid.UUID, opts ...repo.Option) (*models.Account, error)
	Create(ctx context.Context, acc *models.Account) error
	UpdateByID(ctx context.Context, id uuid.UUID, u repo.AccountUpdate) (*models.Account, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error
}

type AccountService struct {
	Repo       AccountRepo
	Tokens     *tokens.Engine
	Tracer     *tracing.Tracer
	BcryptCost int

	// Optional post-commit side effects.
	Events    EventPublisher
	Directory Directory

	effects sync.WaitGroup
}

type LoginResult struct {
	Account      models.Account
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// finish records the outcome of an operation on its span and closes it. It
// must be deferred directly so that a panic is recorded before it propagates.
func finish(span *tracing.Span, errp *error) {
	if r := recover(); r != nil {
		span.RecordException(fmt.Errorf("panic: %v", r))
		span.End()
		panic(r)
	}
	if *errp != nil {
		span.RecordException(*errp)
	}
	span.End()
}

func (s *AccountService) Create(ctx context.Context, req transport.CreateAccountRequest) (acc *models.Account, err error) {
	ctx, span := s.Tracer.Start(ctx, "create_account")
	defer finish(span, &err)
	l := logging.WithTrace(ctx, logging.FromContext(ctx)).With("svc", "accounts.create")

	err = s.Tracer.Run(ctx, "validate_input", func(ctx context.Context, _ *tracing.Span) error {
		return requireFields(
			field{"userName", req.UserName},
			field{"email", req.Email},
			field{"password", req.Password},
		)
	})
	if err != nil {
		l.Warn("create_account_failed", "status", 400, "reason", "invalid input", "error", err)
		return nil, err
	}

	err = s.Tracer.Run(ctx, "find_existing_account", func(ctx context.Context, sp *tracing.Span) error {
		existing, err := s.Repo.FindOne(ctx, repo.Filter{UserName: req.UserName, Email: req.Email, MatchAny: true})
		switch {
		case err == nil:
			sp.SetAccountID(existing.ID)
			return ErrConflict
		case errors.Is(err, repo.ErrNotFound):
			return nil
		default:
			return internal("find existing account", err)
		}
	})
	if err != nil {
		l.Warn("create_account_failed", "reason", "lookup", "error", err)
		return nil, err
	}

	var created *models.Account
	err = s.Tracer.Run(ctx, "create_account_record", func(ctx context.Context, sp *tracing.Span) error {
		var pwHash string
		err := s.Tracer.Run(ctx, "hash_password", func(context.Context, *tracing.Span) error {
			var err error
			pwHash, err = hash.HashPassword(req.Password, s.BcryptCost)
			if err != nil {
				return internal("hash password", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		created = &models.Account{
			UserName:     req.UserName,
			Email:        req.Email,
			PasswordHash: pwHash,
		}
		if err := s.Repo.Create(ctx, created); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrConflict
			}
			return internal("create account", err)
		}
		sp.SetAccountID(created.ID)
		return nil
	})
	if err != nil {
		l.Error("create_account_failed", "reason", "create", "error", err)
		return nil, err
	}

	err = s.Tracer.Run(ctx, "fetch_created_account", func(ctx context.Context, sp *tracing.Span) error {
		found, err := s.Repo.FindByID(ctx, created.ID, repo.WithoutSecrets())
		if err != nil {
			return internal("fetch created account", err)
		}
		redacted := found.Redacted()
		acc = &redacted
		sp.SetAccountID(acc.ID)
		return nil
	})
	if err != nil {
		l.Error("create_account_failed", "status", 500, "reason", "refetch", "error", err)
		return nil, err
	}

	s.afterCommit(ctx, EventAccountCreated, *acc)
	l.Info("create_account_success", "account_id", acc.ID.String())
	return acc, nil
}

func (s *AccountService) Login(ctx context.Context, req transport.LoginRequest) (res *LoginResult, err error) {
	ctx, span := s.Tracer.Start(ctx, "login")
	defer finish(span, &err)
	l := logging.WithTrace(ctx, logging.FromContext(ctx)).With("svc", "accounts.login")

	err = s.Tracer.Run(ctx, "validate_input", func(ctx context.Context, _ *tracing.Span) error {
		return requireFields(field{"email", req.Email}, field{"password", req.Password})
	})
	if err != nil {
		l.Warn("login_failed", "status", 400, "reason", "invalid input", "error", err)
		return nil, err
	}

	// A missing account is not reported here: the password step still runs
	// so both failure cases cost the same and look the same.
	var acc *models.Account
	err = s.Tracer.Run(ctx, "find_account_by_email", func(ctx context.Context, sp *tracing.Span) error {
		found, err := s.Repo.FindOne(ctx, repo.Filter{Email: req.Email})
		switch {
		case err == nil:
			acc = found
			sp.SetAccountID(acc.ID)
			return nil
		case errors.Is(err, repo.ErrNotFound):
			return nil
		default:
			return internal("find account by email", err)
		}
	})
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "lookup", "error", err)
		return nil, err
	}

	err = s.Tracer.Run(ctx, "verify_password", func(ctx context.Context, sp *tracing.Span) error {
		valid := false
		if acc == nil {
			hash.DummyCompare(req.Password, s.BcryptCost)
		} else {
			valid = hash.CheckPassword(acc.PasswordHash, req.Password)
		}
		sp.SetAttributes(tracing.AttrPasswordValid.Bool(valid))
		if !valid {
			return ErrInvalidCredentials
		}
		return nil
	})
	if err != nil {
		l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
		return nil, err
	}

	res, err = s.issueTokens(ctx, acc)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	s.afterCommit(ctx, EventAccountLoggedIn, res.Account)
	l.Info("login_successful", "account_id", acc.ID.String())
	return res, nil
}

// findCaller loads the authenticated caller's live account.
func (s *AccountService) findCaller(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var acc *models.Account
	err := s.Tracer.Run(ctx, "find_account", func(ctx context.Context, sp *tracing.Span) error {
		found, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			return internal("find account", err)
		}
		acc = found
		sp.SetAccountID(acc.ID)
		return nil
	})
	return acc, err
}

// saveAccount runs write against the live row of id. A row that vanished in
// between is ErrNotFound.
func (s *AccountService) saveAccount(ctx context.Context, id uuid.UUID, write func(ctx context.Context) error) error {
	return s.Tracer.Run(ctx, "save_account", func(ctx context.Context, sp *tracing.Span) error {
		if err := write(ctx); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			return internal("save account", err)
		}
		sp.SetAccountID(id)
		return nil
	})
}

func (s *AccountService) Logout(ctx context.Context, accountID uuid.UUID) (err error) {
	ctx, span := s.Tracer.Start(ctx, "logout")
	defer finish(span, &err)
	l := logging.WithTrace(ctx, logging.FromContext(ctx)).With("svc", "accounts.logout", "account_id", accountID.String())

	acc, err := s.findCaller(ctx, accountID)
	if err != nil {
		l.Warn("logout_failed", "reason", "find account", "error", err)
		return err
	}

	err = s.Tracer.Run(ctx, "clear_refresh_token", func(ctx context.Context, sp *tracing.Span) error {
		acc.RefreshToken = ""
		sp.SetAccountID(acc.ID)
		return nil
	})
	if err != nil {
		l.Error("logout_failed", "reason", "clear refresh token", "error", err)
		return err
	}

	err = s.saveAccount(ctx, acc.ID, func(ctx context.Context) error {
		return s.Repo.SetRefreshToken(ctx, acc.ID, acc.RefreshToken)
	})
	if err != nil {
		l.Error("logout_failed", "reason", "cannot revoke refresh token", "error", err)
		return err
	}

	s.afterCommit(ctx, EventAccountLoggedOut, acc.Redacted())
	l.Info("successful_logout")
	return nil
}

func (s *AccountService) Update(ctx context.Context, accountID uuid.UUID, req transport.UpdateAccountRequest) (acc *models.Account, err error) {
	ctx, span := s.Tracer.Start(ctx, "update_account")
	defer finish(span, &err)
	l := logging.WithTrace(ctx, logging.FromContext(ctx)).With("svc", "accounts.update", "account_id", accountID.String())

	caller, err := s.findCaller(ctx, accountID)
	if err != nil {
		l.Warn("update_account_failed", "reason", "find account", "error", err)
		return nil, err
	}

	err = s.Tracer.Run(ctx, "validate_input", func(ctx context.Context, _ *tracing.Span) error {
		return requireFields(field{"userName", req.UserName}, field{"email", req.Email})
	})
	if err != nil {
		l.Warn("update_account_failed", "status", 400, "reason", "invalid input", "error", err)
		return nil, err
	}

	err = s.Tracer.Run(ctx, "update_account_record", func(ctx context.Context, sp *tracing.Span) error {
		updated, err := s.Repo.UpdateByID(ctx, caller.ID, repo.AccountUpdate{UserName: req.UserName, Email: req.Email})
		switch {
		case err == nil:
		case errors.Is(err, repo.ErrConflict):
			return ErrConflict
		case errors.Is(err, repo.ErrNotFound):
			return internal("update account", errors.New("update returned no account"))
		default:
			return internal("update account", err)
		}
		redacted := updated.Redacted()
		acc = &redacted
		sp.SetAccountID(acc.ID)
		return nil
	})
	if err != nil {
		l.Warn("update_account_failed", "reason", "update", "error", err)
		return nil, err
	}

	s.afterCommit(ctx, EventAccountUpdated, *acc)
	l.Info("update_account_success")
	return acc, nil
}

func (s *AccountService) Delete(ctx context.Context, accountID uuid.UUID) (err error) {
	ctx, span := s.Tracer.Start(ctx, "delete_account")
	defer finish(span, &err)
	l := logging.WithTrace(ctx, logging.FromContext(ctx)).With("svc", "accounts.delete", "account_id", accountID.String())

	acc, err := s.findCaller(ctx, accountID)
	if err != nil {
		l.Warn("delete_account_failed", "reason", "find account", "error", err)
		return err
	}

	err = s.Tracer.Run(ctx, "mark_account_deleted", func(ctx context.Context, sp *tracing.Span) error {
		now := time.Now().UTC()
		acc.IsDeleted = true
		acc.DeletedAt = &now
		sp.SetAccountID(acc.ID)
		return nil
	})
	if err != nil {
		l.Error("delete_account_failed", "reason", "mark deleted", "error", err)
		return err
	}

	err = s.saveAccount(ctx, acc.ID, func(ctx context.Context) error {
		return s.Repo.MarkDeleted(ctx, acc.ID, *acc.DeletedAt)
	})
	if err != nil {
		l.Error("delete_account_failed", "reason", "cannot persist soft delete", "error", err)
		return err
	}

	s.afterCommit(ctx, EventAccountDeleted, acc.Redacted())
	l.Info("delete_account_success")
	return nil
}
