package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hosiery/backend/internal/cache"
	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/lock"
	"hosiery/backend/internal/logging"
	"hosiery/backend/internal/pricing"
	"hosiery/backend/internal/store"
)

const tracerName = "hosiery/backend/internal/service"

type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Locker   lock.Locker
	Pricing  *pricing.Engine
	Policy   domain.DiscountPolicy
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

type Service struct {
	repo     store.Repository
	cache    cache.Cache
	cacheTTL time.Duration
	locker   lock.Locker
	pricing  *pricing.Engine
	policy   domain.DiscountPolicy
	log      logrus.FieldLogger
	validate *validator.Validate
	tracer   trace.Tracer
	now      func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Cache == nil {
		opts.Cache = cache.Noop{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	if opts.Pricing == nil {
		opts.Pricing = pricing.NewEngine(opts.Cache, 0, opts.Logger)
	}
	if !opts.Policy.Valid() {
		opts.Policy = domain.DiscountFull
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:     repo,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		locker:   opts.Locker,
		pricing:  opts.Pricing,
		policy:   opts.Policy,
		log:      opts.Logger.WithField("component", "service"),
		validate: newValidator(),
		tracer:   otel.Tracer(tracerName),
		now:      opts.Now,
	}
}

// Policy is the discount policy applied to multi-batch sales.
func (s *Service) Policy() domain.DiscountPolicy {
	return s.policy
}

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "inventory."+op, trace.WithAttributes(attrs...))
}

// finish records err on the span and logs storage failures. It returns err
// unchanged.
func (s *Service) finish(span trace.Span, op string, fields logrus.Fields, err error) error {
	defer span.End()
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, store.ErrStorage) {
		logging.LogError(s.log, "service", op, fields, err)
	}
	return err
}

// withVariantLock runs fn while holding the lock for the variant.
func (s *Service) withVariantLock(ctx context.Context, variant domain.Variant, fn func() error) error {
	release, err := s.locker.Obtain(ctx, variant.Key())
	if err != nil {
		return store.NewStorageError("lock variant", err)
	}
	defer release()
	return fn()
}

func variantAttrs(v domain.Variant) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("inventory.type", v.Type),
		attribute.String("inventory.color", v.Color),
		attribute.String("inventory.size", v.Size),
	}
}
