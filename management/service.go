package management

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-biteui-client/apiclient"
	"github.com/jrsteele09/go-biteui-client/internal/errors"
	"github.com/jrsteele09/go-biteui-client/internal/utils"
	"github.com/jrsteele09/go-biteui-client/internal/validation"
)

// ErrNotFound is matched by errors returned for users the API does not know.
var ErrNotFound = errors.ErrNotFound

type Service struct {
	api *apiclient.Client
}

func NewService(api *apiclient.Client) *Service {
	return &Service{api: api}
}

type userEnvelope struct {
	User User `json:"user"`
}

type usersEnvelope struct {
	Users []User `json:"users"`
}

func (f Filter) query(q apiclient.Query) apiclient.Query {
	if len(f.Statuses) > 0 {
		statuses := make([]int, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = int(s)
		}
		q["status"] = statuses
	}
	if f.Search != "" {
		q["search"] = f.Search
	}
	if f.SortBy != "" {
		q["sort_by"] = f.SortBy
	}
	if f.SortOrder != "" {
		q["sort_order"] = string(f.SortOrder)
	}
	if f.DateFrom != "" {
		q["date_from"] = f.DateFrom
	}
	if f.DateTo != "" {
		q["date_to"] = f.DateTo
	}
	return q
}

func (in ListInput) query() apiclient.Query {
	q := apiclient.Query{}
	if in.Page > 0 {
		q["page"] = in.Page
	}
	if in.Size > 0 {
		q["size"] = in.Size
	}
	return in.Filter.query(q)
}

func (s *Service) List(ctx context.Context, in ListInput) (*UserList, error) {
	env, err := apiclient.Get[usersEnvelope](ctx, s.api, apiclient.PathUsers,
		apiclient.WithAuth(), apiclient.WithQuery(in.query()))
	if err != nil {
		return nil, errors.Wrapf(err, "list users")
	}

	list := &UserList{Users: env.Data.Users}
	if list.Users == nil {
		list.Users = []User{}
	}
	if env.Meta != nil {
		list.Page, list.Size, list.Total = env.Meta.Page, env.Meta.Size, env.Meta.Total
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "id is required")
	}
	env, err := apiclient.Get[userEnvelope](ctx, s.api, apiclient.UserPath(id), apiclient.WithAuth())
	if err != nil {
		return nil, errors.Wrapf(notFound(err), "get user %s", id)
	}
	return &env.Data.User, nil
}

func (s *Service) Create(ctx context.Context, in CreateUserInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Post[any](ctx, s.api, apiclient.PathUsers, in, apiclient.WithAuth())
	return errors.Wrapf(err, "create user")
}

// Update sends only the fields set on in. Empty strings count as unset.
func (s *Service) Update(ctx context.Context, in UpdateUserInput) error {
	for _, f := range []**string{&in.Email, &in.Password, &in.FullName} {
		if *f != nil && strings.TrimSpace(utils.Value(*f)) == "" {
			*f = nil
		}
	}
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Put[any](ctx, s.api, apiclient.UserPath(in.ID), in, apiclient.WithAuth())
	return errors.Wrapf(err, "update user %s", in.ID)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "id is required")
	}
	_, err := apiclient.Delete[any](ctx, s.api, apiclient.UserPath(id), apiclient.WithAuth())
	return errors.Wrapf(notFound(err), "delete user %s", id)
}

// notFound marks 404 responses with ErrNotFound. The *APIError stays in the
// chain.
func notFound(err error) error {
	if apiErr, ok := apiclient.AsAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// Import creates or updates users in bulk, matched by email.
func (s *Service) Import(ctx context.Context, users []ImportUser) (*ImportResult, error) {
	if len(users) == 0 {
		return &ImportResult{}, nil
	}
	for i := range users {
		if err := validation.Struct(users[i]); err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
	}
	env, err := apiclient.Post[ImportResult](ctx, s.api, apiclient.PathUsersImport, users, apiclient.WithAuth())
	if err != nil {
		return nil, errors.Wrapf(err, "import users")
	}
	return &env.Data, nil
}

// Export returns every user matching f.
func (s *Service) Export(ctx context.Context, f Filter) ([]User, error) {
	env, err := apiclient.Get[usersEnvelope](ctx, s.api, apiclient.PathUsersExport,
		apiclient.WithAuth(), apiclient.WithQuery(f.query(apiclient.Query{})))
	if err != nil {
		return nil, errors.Wrapf(err, "export users")
	}
	if env.Data.Users == nil {
		return []User{}, nil
	}
	return env.Data.Users, nil
}
