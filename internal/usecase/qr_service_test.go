//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/usecase"
)

func TestQRService_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads the png and returns the proxy url", func(t *testing.T) {
		f := newFixture()
		qr := usecase.NewQRService(f.encoder, f.storage, testPublicBase+"/", 256, newTestLogger())

		out, err := qr.Issue(ctx, usecase.QRRequest{
			Kind:         "order",
			Payload:      `{"order_id":1}`,
			Bucket:       "imageBank",
			Key:          "orders/1/x.png",
			FriendlyPath: "/images/order/1",
		})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.ObjectPath != "imageBank/orders/1/x.png" || out.FriendlyURL != testPublicBase+"/images/order/1" {
			t.Errorf("unexpected issue %+v", out)
		}
		if _, ok := f.storage.Objects["imageBank/orders/1/x.png"]; !ok {
			t.Error("expected the object to be stored")
		}
	})

	t.Run("rejects an incomplete request", func(t *testing.T) {
		f := newFixture()
		if _, err := f.qr.Issue(ctx, usecase.QRRequest{Kind: "order", Bucket: "imageBank", Key: "k"}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected invalid argument, got %v", err)
		}
	})

	t.Run("encoder failure is returned before any upload", func(t *testing.T) {
		f := newFixture()
		f.encoder.EncodePNGFunc = func(payload string, size int) ([]byte, error) { return nil, errBoom }

		_, err := f.qr.Issue(ctx, usecase.QRRequest{Kind: "ticket", Payload: "p", Bucket: "imageBank", Key: "k"})
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if f.storage.Puts != 0 {
			t.Error("nothing should be uploaded")
		}
	})
}
