package httpapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fortress/internal/logging"
	"github.com/dmitrijs2005/fortress/internal/server/storage"
)

func testHandler(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	h := NewHandler(storage.NewMemoryRepository(),
		[]byte("test-secret"), time.Minute, []byte("test-pepper"),
		logging.NewText(slog.LevelError))
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return h, srv
}

func postJSON(t *testing.T, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func login(t *testing.T, url string, userId, userKey []byte) string {
	t.Helper()
	resp, body := postJSON(t, url+"/login", "", loginRequest{
		UserId:  hex.EncodeToString(userId),
		UserKey: hex.EncodeToString(userKey),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var lr loginResponse
	require.NoError(t, json.Unmarshal(body, &lr))
	require.NotEmpty(t, lr.AccessToken)
	return lr.AccessToken
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + n)
	}
	return b
}

func TestLoginRegistersAndVerifies(t *testing.T) {
	_, srv := testHandler(t)
	userId, userKey := randBytes(32), randBytes(32)

	// First login registers, second verifies.
	login(t, srv.URL, userId, userKey)
	login(t, srv.URL, userId, userKey)

	// A different key for the same account is rejected.
	wrongKey := append([]byte(nil), userKey...)
	wrongKey[0] ^= 1
	resp, _ := postJSON(t, srv.URL+"/login", "", loginRequest{
		UserId:  hex.EncodeToString(userId),
		UserKey: hex.EncodeToString(wrongKey),
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsMalformedInput(t *testing.T) {
	_, srv := testHandler(t)

	for _, req := range []loginRequest{
		{UserId: "zz", UserKey: hex.EncodeToString(randBytes(32))},
		{UserId: hex.EncodeToString(randBytes(32)), UserKey: "short"},
		{UserId: hex.EncodeToString(randBytes(8)), UserKey: hex.EncodeToString(randBytes(32))},
	} {
		resp, _ := postJSON(t, srv.URL+"/login", "", req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestObjectEndpointsRequireToken(t *testing.T) {
	_, srv := testHandler(t)

	for _, path := range []string{"/list_objects", "/get_object", "/update_object"} {
		resp, _ := postJSON(t, srv.URL+path, "", struct{}{})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)

		resp, _ = postJSON(t, srv.URL+path, "not-a-jwt", struct{}{})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestObjectLifecycle(t *testing.T) {
	_, srv := testHandler(t)
	userId, userKey := randBytes(32), randBytes(32)
	token := login(t, srv.URL, userId, userKey)

	objectId := randBytes(32)
	siv := randBytes(32)
	data := randBytes(77)

	resp, _ := postJSON(t, srv.URL+"/update_object", token, updateObjectRequest{
		ObjectId: hex.EncodeToString(objectId),
		Siv:      hex.EncodeToString(siv),
		Data:     hex.EncodeToString(data),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, srv.URL+"/list_objects", token, struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list listObjectsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Objects, 1)
	assert.Equal(t, hex.EncodeToString(objectId), list.Objects[0].Id)
	assert.Equal(t, hex.EncodeToString(siv), list.Objects[0].Siv)

	resp, body = postJSON(t, srv.URL+"/get_object", token, getObjectRequest{
		ObjectId: hex.EncodeToString(objectId),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got getObjectResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, hex.EncodeToString(data), got.Data)

	resp, _ = postJSON(t, srv.URL+"/get_object", token, getObjectRequest{
		ObjectId: hex.EncodeToString(randBytes(31) /* wrong length */),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	missing := randBytes(32)
	missing[0] ^= 1
	resp, _ = postJSON(t, srv.URL+"/get_object", token, getObjectRequest{
		ObjectId: hex.EncodeToString(missing),
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAccountsAreIsolated(t *testing.T) {
	_, srv := testHandler(t)

	tokenA := login(t, srv.URL, randBytes(32), randBytes(32))
	otherId := append(randBytes(32)[:31], 0xff)
	tokenB := login(t, srv.URL, otherId, randBytes(32))

	objectId := randBytes(32)
	resp, _ := postJSON(t, srv.URL+"/update_object", tokenA, updateObjectRequest{
		ObjectId: hex.EncodeToString(objectId),
		Siv:      hex.EncodeToString(randBytes(32)),
		Data:     "00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, srv.URL+"/list_objects", tokenB, struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list listObjectsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Empty(t, list.Objects)

	resp, _ = postJSON(t, srv.URL+"/get_object", tokenB, getObjectRequest{
		ObjectId: hex.EncodeToString(objectId),
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
