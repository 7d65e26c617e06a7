package qrcode

import (
	"fmt"

	goqr "github.com/skip2/go-qrcode"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/ports/adapter"
)

var _ adapter.QREncoder = (*Encoder)(nil)

const DefaultSize = 256

// Encoder renders PNG QR codes at medium error recovery.
type Encoder struct {
	level goqr.RecoveryLevel
}

func NewEncoder() *Encoder {
	return &Encoder{level: goqr.Medium}
}

func (e *Encoder) EncodePNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, domain.ErrInvalidArgument
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := goqr.Encode(payload, e.level, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
