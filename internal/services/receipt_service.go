package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/ugarte24/ventacontrol-pro/internal/apperrors"
	"github.com/ugarte24/ventacontrol-pro/internal/config"
	"github.com/ugarte24/ventacontrol-pro/internal/models"
)

// ReceiptService issues short-lived QR tokens that let a customer pull
// up their sale receipt without authenticating. Tokens live in Redis
// and are consumed on first lookup.
type ReceiptService struct {
	sales  *SaleService
	redis  *redis.Client
	config *config.ReceiptConfig
}

func NewReceiptService(sales *SaleService, redisClient *redis.Client, cfg *config.ReceiptConfig) *ReceiptService {
	return &ReceiptService{sales: sales, redis: redisClient, config: cfg}
}

type ReceiptQR struct {
	Token     string    `json:"token"`
	QRImage   string    `json:"qrImage"` // base64 PNG
	ExpiresAt time.Time `json:"expiresAt"`
}

// GenerateQR mints a one-time token for a sale and renders it as a QR.
func (s *ReceiptService) GenerateQR(ctx context.Context, saleID string) (*ReceiptQR, error) {
	sale, err := s.sales.GetByID(saleID)
	if err != nil {
		return nil, err
	}
	if s.redis == nil {
		return nil, fmt.Errorf("receipt tokens unavailable: cache offline")
	}

	token := uuid.NewString()
	payload, err := json.Marshal(map[string]any{
		"saleId":   sale.ID,
		"issuedAt": time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%s", s.config.TokenPrefix, token)
	if err := s.redis.Set(ctx, key, payload, s.config.TokenTTL).Err(); err != nil {
		return nil, fmt.Errorf("store receipt token: %w", err)
	}

	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.config.QRSize)); err != nil {
		return nil, err
	}

	return &ReceiptQR{
		Token:     token,
		QRImage:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		ExpiresAt: time.Now().Add(s.config.TokenTTL),
	}, nil
}

// Lookup resolves a token to its sale and burns the token.
func (s *ReceiptService) Lookup(ctx context.Context, token string) (*models.Sale, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("receipt tokens unavailable: cache offline")
	}

	key := fmt.Sprintf("%s:%s", s.config.TokenPrefix, token)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, apperrors.NewValidationError("token", "recibo inválido o expirado")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup receipt token: %w", err)
	}
	s.redis.Del(ctx, key)

	var payload struct {
		SaleID string `json:"saleId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return s.sales.GetByID(payload.SaleID)
}

// ---- HTTP handlers ----

func (s *ReceiptService) GenerateReceiptQR(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.GenerateQR(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if apperrors.IsNotFound(err) {
			SendErrorResponse(w, apperrors.UserMessage(err), http.StatusNotFound, nil)
			return
		}
		SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusCreated, receipt)
}

func (s *ReceiptService) LookupReceipt(w http.ResponseWriter, r *http.Request) {
	sale, err := s.Lookup(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		switch {
		case apperrors.IsValidation(err):
			SendErrorResponse(w, apperrors.UserMessage(err), http.StatusNotFound, nil)
		case apperrors.IsNotFound(err):
			SendErrorResponse(w, apperrors.UserMessage(err), http.StatusNotFound, nil)
		default:
			SendErrorResponse(w, apperrors.UserMessage(err), http.StatusInternalServerError, nil)
		}
		return
	}
	SendJSON(w, http.StatusOK, sale)
}
