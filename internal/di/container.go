package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helpora/api/internal/platform/config"
	"github.com/helpora/api/internal/repositories"
	"github.com/helpora/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled in NewContainer.
type Services struct {
	Catalog  services.CatalogService
	Cart     services.CartService
	Bookings services.BookingService
	Reviews  services.ReviewService
}

// Options carries the optional collaborators injected from the process edge.
// A nil Addresses skips address validation at checkout.
type Options struct {
	Payments  services.PaymentAuthorizer
	Events    services.BookingEventPublisher
	Addresses services.AddressResolver
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// a Firestore-backed registry; tests can supply the in-memory one.
func NewContainer(cfg config.Config, reg repositories.Registry, opts Options) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(reg, cfg, opts)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository-held resources such as backend clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, opts Options) (Services, error) {
	var svc Services

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Listings: reg.Listings(),
		Vendors:  reg.Vendors(),
		Clock:    time.Now,
		Logger:   opts.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	bookingSvc, err := services.NewBookingService(services.BookingServiceDeps{
		Bookings: reg.Bookings(),
		Clock:    time.Now,
		Events:   opts.Events,
		Logger:   opts.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build booking service: %w", err)
	}
	svc.Bookings = bookingSvc

	reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews:  reg.Reviews(),
		Bookings: reg.Bookings(),
		Clock:    time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviewSvc

	pricer := services.NewPricingEngine(services.PricingEngineDeps{Logger: opts.Logger})

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:           reg.Carts(),
		Catalog:         catalogSvc,
		Vendors:         services.NewVendorDirectory(reg.Vendors()),
		Pricer:          pricer,
		Addresses:       opts.Addresses,
		Payments:        opts.Payments,
		Bookings:        bookingSvc,
		UnitOfWork:      reg,
		Clock:           time.Now,
		DefaultCurrency: cfg.Pricing.Currency,
		Logger:          opts.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	return svc, nil
}
