package cartclient

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var _ auth.Authenticator = (*AuthClient)(nil)

// AuthClient signs users in against the external auth provider.
type AuthClient struct {
	c *Client
}

// NewAuthClient creates an AuthClient for the provider at cfg.BaseURL.
func NewAuthClient(cfg Config, opts ...Option) (*AuthClient, error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &AuthClient{c: c}, nil
}

// SignIn posts the credentials to /signin and returns the issued token and
// user profile. Rejected credentials yield auth.ErrUnauthorized.
func (a *AuthClient) SignIn(ctx context.Context, creds auth.Credentials) (string, auth.User, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("email", func(e *jx.Encoder) { e.Str(creds.Email) })
		e.Field("password", func(e *jx.Encoder) { e.Str(creds.Password) })
	})
	data, err := a.c.do(ctx, request{
		op:     "sign in",
		method: http.MethodPost,
		path:   "/signin",
		body:   e.Bytes(),
	})
	if err != nil {
		var ne *cart.NetworkError
		if errors.As(err, &ne) && (ne.Status == http.StatusUnauthorized || ne.Status == http.StatusBadRequest) {
			return "", auth.User{}, errors.Wrap(auth.ErrUnauthorized, "sign in")
		}
		if cart.IsNotFound(err) {
			return "", auth.User{}, errors.Wrap(auth.ErrUnauthorized, "sign in")
		}
		return "", auth.User{}, err
	}

	token, user, err := decodeSignIn(data)
	if err != nil {
		return "", auth.User{}, errors.Wrap(err, "decode sign in response")
	}
	if token == "" {
		return "", auth.User{}, errors.Wrap(auth.ErrUnauthorized, "sign in: empty token")
	}
	return token, user, nil
}

func decodeSignIn(data []byte) (token string, user auth.User, err error) {
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "token":
			t, err := d.Str()
			token = t
			return err
		case "user":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if d.Next() != jx.String {
					return d.Skip()
				}
				switch key {
				case "_id", "id":
					v, err := d.Str()
					user.ID = v
					return err
				case "email":
					v, err := d.Str()
					user.Email = v
					return err
				case "fullName", "name":
					v, err := d.Str()
					if user.Name == "" {
						user.Name = v
					}
					return err
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
	return token, user, err
}
