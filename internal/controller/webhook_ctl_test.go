package controller

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakePushHandler struct {
	valid      bool
	auth       string
	dispatched [][]byte
}

func (f *fakePushHandler) Verify(_ []byte, authorization string) bool {
	f.auth = authorization
	return f.valid
}

func (f *fakePushHandler) Dispatch(body []byte) {
	f.dispatched = append(f.dispatched, body)
}

func TestWebhook_Receive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name     string
		valid    bool
		wantCode int
		wantSent int
	}{
		{"签名有效", true, http.StatusOK, 1},
		{"签名无效", false, http.StatusUnauthorized, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &fakePushHandler{valid: tt.valid}
			r := gin.New()
			r.POST("/api/webhook", NewWebhookController(h).Receive)

			body := `{"code":3,"shop_id":1001,"timestamp":1700000000,"data":{"ordersn":"SN1","status":"SHIPPED"}}`
			req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
			req.Header.Set("Authorization", "sig")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "sig", h.auth)
			assert.Len(t, h.dispatched, tt.wantSent)
			if tt.wantSent > 0 {
				assert.JSONEq(t, body, string(h.dispatched[0]))
			}
		})
	}
}
