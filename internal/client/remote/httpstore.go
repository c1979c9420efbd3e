// Package remote provides ObjectStore implementations for the sync engine:
// the fortress server's JSON API and S3-compatible object storage.
package remote

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fortress/internal/fortress"
	"github.com/dmitrijs2005/fortress/internal/fortresscrypto"
)

// HTTPStore speaks the fortress server's JSON API. It logs in lazily with
// the login id and key, carries the issued access token on every call, and
// re-logs in once when the token expires mid-session.
type HTTPStore struct {
	baseURL  string
	client   *http.Client
	loginId  fortresscrypto.LoginId
	loginKey fortresscrypto.LoginKey

	accessToken string
}

func NewHTTPStore(baseURL string, loginId fortresscrypto.LoginId, loginKey fortresscrypto.LoginKey, timeout time.Duration) *HTTPStore {
	return &HTTPStore{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		loginId:  loginId,
		loginKey: loginKey,
	}
}

type loginRequest struct {
	UserId  string `json:"user_id"`
	UserKey string `json:"user_key"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type listObjectsResponse struct {
	Objects []wireObject `json:"objects"`
}

type wireObject struct {
	Id  string `json:"id"`
	Siv string `json:"siv"`
}

type getObjectRequest struct {
	ObjectId string `json:"object_id"`
}

type getObjectResponse struct {
	Siv  string `json:"siv"`
	Data string `json:"data"`
}

type updateObjectRequest struct {
	ObjectId string `json:"object_id"`
	Siv      string `json:"siv"`
	Data     string `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HTTPStore) List(ctx context.Context) ([]fortress.RemoteObject, error) {
	var resp listObjectsResponse
	if err := s.call(ctx, "/list_objects", struct{}{}, &resp); err != nil {
		return nil, err
	}

	out := make([]fortress.RemoteObject, 0, len(resp.Objects))
	for _, wo := range resp.Objects {
		id, err := fortress.ParseID(wo.Id)
		if err != nil {
			return nil, fmt.Errorf("%w: bad id in inventory: %v", fortress.ErrTransportFailure, err)
		}
		siv, err := parseSiv(wo.Siv)
		if err != nil {
			return nil, err
		}
		out = append(out, fortress.RemoteObject{Id: id, Siv: siv})
	}
	return out, nil
}

func (s *HTTPStore) Get(ctx context.Context, id fortress.ID) (fortresscrypto.SIV, []byte, error) {
	var resp getObjectResponse
	if err := s.call(ctx, "/get_object", getObjectRequest{ObjectId: id.String()}, &resp); err != nil {
		return fortresscrypto.SIV{}, nil, err
	}

	siv, err := parseSiv(resp.Siv)
	if err != nil {
		return fortresscrypto.SIV{}, nil, err
	}
	data, err := hex.DecodeString(resp.Data)
	if err != nil {
		return fortresscrypto.SIV{}, nil, fmt.Errorf("%w: bad object data", fortress.ErrTransportFailure)
	}
	return siv, data, nil
}

func (s *HTTPStore) Put(ctx context.Context, id fortress.ID, siv fortresscrypto.SIV, ciphertext []byte) error {
	req := updateObjectRequest{
		ObjectId: id.String(),
		Siv:      siv.String(),
		Data:     hex.EncodeToString(ciphertext),
	}
	return s.call(ctx, "/update_object", req, &struct{}{})
}

// login exchanges the login credentials for an access token.
func (s *HTTPStore) login(ctx context.Context) error {
	req := loginRequest{
		UserId:  s.loginId.String(),
		UserKey: hex.EncodeToString(s.loginKey[:]),
	}
	var resp loginResponse
	if err := s.post(ctx, "/login", "", req, &resp); err != nil {
		return err
	}
	s.accessToken = resp.AccessToken
	return nil
}

// call posts to an authenticated endpoint, logging in on first use and
// retrying exactly once after an expired token.
func (s *HTTPStore) call(ctx context.Context, path string, req, resp any) error {
	if s.accessToken == "" {
		if err := s.login(ctx); err != nil {
			return err
		}
	}

	err := s.post(ctx, path, s.accessToken, req, resp)
	if err == nil || !isAuthError(err) {
		return err
	}

	// The token may simply have expired; one fresh login decides it.
	if err := s.login(ctx); err != nil {
		return err
	}
	return s.post(ctx, path, s.accessToken, req, resp)
}

func (s *HTTPStore) post(ctx context.Context, path, token string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", fortress.ErrTransportFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", fortress.ErrTransportFailure, err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusOK:
		return json.NewDecoder(httpResp.Body).Decode(resp)
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		var er errorResponse
		_ = json.NewDecoder(httpResp.Body).Decode(&er)
		return fmt.Errorf("%w: %s", fortress.ErrServerRejected, er.Error)
	default:
		return fmt.Errorf("%w: server returned %s", fortress.ErrTransportFailure, httpResp.Status)
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, fortress.ErrServerRejected)
}

func parseSiv(s string) (fortresscrypto.SIV, error) {
	var siv fortresscrypto.SIV
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != fortresscrypto.SIVSize {
		return siv, fmt.Errorf("%w: bad siv %q", fortress.ErrTransportFailure, s)
	}
	copy(siv[:], raw)
	return siv, nil
}
