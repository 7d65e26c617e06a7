package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/adapter"
	"earlykickoff-backend/internal/domain/ports/repository"
	"earlykickoff-backend/internal/infra/logging"
	"earlykickoff-backend/internal/infra/metrics"
)

// Compile-time check
var _ ImageUseCase = (*imageUC)(nil)

const DefaultImageCacheControl = "public, max-age=31536000, immutable"

// Proxy routes, used as metric labels and to pick a default content type.
const (
	RoutePath    = "path"
	RouteProduct = "product"
	RouteEvent   = "event"
	RouteOrder   = "order"
	RouteTicket  = "ticket"
)

// ImageBlob is an image ready to stream back. The caller closes Body.
type ImageBlob struct {
	Body          io.ReadCloser
	ContentType   string
	CacheControl  string
	ContentLength int64
}

type ImageUseCase interface {
	ResolvePath(path string) (model.ImageRef, error)
	ResolveProduct(ctx context.Context, id int64) (model.ImageRef, error)
	ResolveEvent(ctx context.Context, id int64) (model.ImageRef, error)
	ResolveOrder(ctx context.Context, id int64) (model.ImageRef, error)
	ResolveTicket(ctx context.Context, eventID int64, uid string) (model.ImageRef, error)
	// Open signs storage references and fetches the bytes; the signed URL
	// never leaves this call.
	Open(ctx context.Context, route string, ref model.ImageRef) (*ImageBlob, error)
}

type imageUC struct {
	catalog repository.CatalogRepository
	orders  repository.OrderRepository
	tickets repository.TicketRepository
	store   adapter.ObjectStorage
	fetch   adapter.ImageFetcher
	signTTL time.Duration
	log     *zerolog.Logger
}

func NewImageUseCase(
	catalog repository.CatalogRepository,
	orders repository.OrderRepository,
	tickets repository.TicketRepository,
	store adapter.ObjectStorage,
	fetch adapter.ImageFetcher,
	signTTL time.Duration,
	logger *zerolog.Logger,
) *imageUC {
	if signTTL <= 0 {
		signTTL = 60 * time.Second
	}
	l := logger.With().Str("component", "ImageUC").Logger()
	return &imageUC{
		catalog: catalog,
		orders:  orders,
		tickets: tickets,
		store:   store,
		fetch:   fetch,
		signTTL: signTTL,
		log:     &l,
	}
}

// ResolvePath only addresses object storage. The path comes from the client,
// so absolute and data URLs are refused rather than fetched.
func (u *imageUC) ResolvePath(path string) (model.ImageRef, error) {
	ref, err := model.ParseImageRef(path)
	if err != nil {
		return model.ImageRef{}, err
	}
	if ref.IsExternal() {
		return model.ImageRef{}, fmt.Errorf("%w: external image path", domain.ErrInvalidArgument)
	}
	return ref, nil
}

func (u *imageUC) ResolveProduct(ctx context.Context, id int64) (model.ImageRef, error) {
	p, err := u.catalog.FindProduct(ctx, repository.NoTX, id)
	if err != nil {
		return model.ImageRef{}, err
	}
	if p.ImageURL == nil {
		return model.ImageRef{}, domain.ErrNotFound
	}
	return model.ParseImageRef(*p.ImageURL)
}

func (u *imageUC) ResolveEvent(ctx context.Context, id int64) (model.ImageRef, error) {
	ev, err := u.catalog.FindEvent(ctx, repository.NoTX, id)
	if err != nil {
		return model.ImageRef{}, err
	}
	if ev.ImageURL == nil {
		return model.ImageRef{}, domain.ErrNotFound
	}
	return model.ParseImageRef(*ev.ImageURL)
}

// ResolveOrder prefers metadata.qr_object_path, then the path kept in
// qr_code, then whatever can be recovered from an old qr_image_url.
func (u *imageUC) ResolveOrder(ctx context.Context, id int64) (model.ImageRef, error) {
	o, err := u.orders.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return model.ImageRef{}, err
	}
	candidates := []string{o.QRObjectPath()}
	if o.QRCode != nil && !strings.Contains(*o.QRCode, model.OrderQRPath(o.ID)) {
		candidates = append(candidates, *o.QRCode)
	}
	if o.QRImageURL != nil {
		candidates = append(candidates, model.LegacyOrderQRPath(*o.QRImageURL))
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if ref, err := model.ParseImageRefIn(c, model.BucketImageBank); err == nil {
			return ref, nil
		}
	}
	return model.ImageRef{}, domain.ErrQRPathNotFound
}

func (u *imageUC) ResolveTicket(ctx context.Context, eventID int64, uid string) (model.ImageRef, error) {
	if eventID <= 0 || strings.TrimSpace(uid) == "" {
		return model.ImageRef{}, domain.ErrInvalidArgument
	}
	t, err := u.tickets.FindByUID(ctx, repository.NoTX, uid)
	if err != nil {
		return model.ImageRef{}, err
	}
	if t.EventID != eventID {
		return model.ImageRef{}, domain.ErrEventMismatch
	}
	path := model.BucketImageBank + "/" + model.TicketQRKey(eventID, uid)
	if t.QRObjectPath != nil && strings.TrimSpace(*t.QRObjectPath) != "" {
		path = *t.QRObjectPath
	}
	return model.ParseImageRefIn(path, model.BucketImageBank)
}

func (u *imageUC) Open(ctx context.Context, route string, ref model.ImageRef) (*ImageBlob, error) {
	defer logging.TraceDuration(u.log, "ImageUC.Open")()
	log := logging.With(ctx, u.log)

	if strings.HasPrefix(strings.ToLower(ref.External), "data:") {
		return decodeDataURL(ref.External)
	}

	target := ref.External
	if !ref.IsExternal() {
		signed, err := u.store.PresignGet(ctx, ref.Bucket, ref.Key, u.signTTL)
		if err != nil {
			log.Debug().Err(err).Str("bucket", ref.Bucket).Str("key", ref.Key).Msg("sign image")
			return nil, fmt.Errorf("sign %s: %w", ref.Bucket, domain.ErrNotFound)
		}
		target = signed
	}

	start := time.Now()
	img, err := u.fetch.Fetch(ctx, target)
	metrics.ObserveImageUpstream(route, time.Since(start).Seconds())
	if err != nil {
		log.Warn().Err(err).Str("route", route).Msg("image upstream failed")
		if errors.Is(err, domain.ErrUpstream) {
			return nil, domain.ErrUpstream
		}
		return nil, fmt.Errorf("%w: fetch", domain.ErrUpstream)
	}

	blob := &ImageBlob{
		Body:          img.Body,
		ContentType:   img.ContentType,
		CacheControl:  img.CacheControl,
		ContentLength: img.ContentLength,
	}
	if blob.ContentType == "" {
		blob.ContentType = defaultContentType(route)
	}
	if blob.CacheControl == "" {
		blob.CacheControl = DefaultImageCacheControl
	}
	return blob, nil
}

func defaultContentType(route string) string {
	if route == RouteOrder || route == RouteTicket {
		return "image/png"
	}
	return "application/octet-stream"
}

// decodeDataURL serves data:[<type>][;base64],<data> references in-process.
func decodeDataURL(s string) (*ImageBlob, error) {
	meta, data, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, domain.ErrNotFound
	}
	contentType := "text/plain"
	isBase64 := false
	for i, part := range strings.Split(meta, ";") {
		switch {
		case i == 0 && part != "":
			contentType = part
		case strings.EqualFold(part, "base64"):
			isBase64 = true
		}
	}

	var body []byte
	var err error
	if isBase64 {
		body, err = base64.StdEncoding.DecodeString(data)
	} else {
		var unescaped string
		unescaped, err = url.PathUnescape(data)
		body = []byte(unescaped)
	}
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return &ImageBlob{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentType:   contentType,
		CacheControl:  DefaultImageCacheControl,
		ContentLength: int64(len(body)),
	}, nil
}
