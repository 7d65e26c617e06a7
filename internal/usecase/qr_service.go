package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/adapter"
	"earlykickoff-backend/internal/infra/logging"
	"earlykickoff-backend/internal/infra/metrics"
)

// Compile-time check
var _ QRService = (*qrService)(nil)

// QRRequest names what to encode and where the image lives.
type QRRequest struct {
	Kind         string // order | ticket, for metrics
	Payload      string
	Bucket       string
	Key          string
	FriendlyPath string // proxy path, e.g. /images/order/42
}

// QRIssue is what gets persisted on the owning entity.
type QRIssue struct {
	ObjectPath  string // bucket/key
	FriendlyURL string
}

type QRService interface {
	Issue(ctx context.Context, req QRRequest) (QRIssue, error)
}

type qrService struct {
	enc        adapter.QREncoder
	store      adapter.ObjectStorage
	publicBase string
	size       int
	log        *zerolog.Logger
}

func NewQRService(enc adapter.QREncoder, store adapter.ObjectStorage, publicBaseURL string, size int, logger *zerolog.Logger) *qrService {
	l := logger.With().Str("component", "QRService").Logger()
	return &qrService{
		enc:        enc,
		store:      store,
		publicBase: strings.TrimRight(publicBaseURL, "/"),
		size:       size,
		log:        &l,
	}
}

// Issue renders and uploads the image, overwriting any previous object at the
// same key, so re-issuing for one entity is safe.
func (s *qrService) Issue(ctx context.Context, req QRRequest) (out QRIssue, err error) {
	defer logging.TraceDuration(s.log, "QRService.Issue")()
	defer func() { metrics.IncQRIssued(req.Kind, err) }()

	if req.Payload == "" || req.Key == "" || req.Bucket == "" {
		return QRIssue{}, domain.ErrInvalidArgument
	}
	png, err := s.enc.EncodePNG(req.Payload, s.size)
	if err != nil {
		return QRIssue{}, fmt.Errorf("render qr: %w", err)
	}
	if err := s.store.Put(ctx, req.Bucket, req.Key, png, "image/png"); err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Str("key", req.Key).Msg("qr upload failed")
		return QRIssue{}, fmt.Errorf("upload qr: %w", err)
	}
	return QRIssue{
		ObjectPath:  req.Bucket + "/" + req.Key,
		FriendlyURL: s.publicBase + req.FriendlyPath,
	}, nil
}

// orderQRRequest builds the canonical request for an order; uid keeps each
// issuance in its own object.
func orderQRRequest(orderID int64, uid string) QRRequest {
	return QRRequest{
		Kind:         "order",
		Payload:      fmt.Sprintf(`{"order_id":%d,"uid":%q}`, orderID, uid),
		Bucket:       model.BucketImageBank,
		Key:          model.OrderQRKey(orderID, uid),
		FriendlyPath: model.OrderQRPath(orderID),
	}
}

func ticketQRRequest(verifyBase string, eventID int64, uid string) QRRequest {
	return QRRequest{
		Kind:         "ticket",
		Payload:      strings.TrimRight(verifyBase, "/") + "/" + uid,
		Bucket:       model.BucketImageBank,
		Key:          model.TicketQRKey(eventID, uid),
		FriendlyPath: model.TicketQRPath(eventID, uid),
	}
}
