package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-atelier/internal/catalog"
	"github.com/noah-isme/backend-atelier/internal/invoice"
	"github.com/noah-isme/backend-atelier/internal/obs"
	"github.com/noah-isme/backend-atelier/internal/pricing"
	"github.com/noah-isme/backend-atelier/internal/queue"
)

// Locker serialises edits to one draft.
type Locker interface {
	WithDraft(ctx context.Context, draftID string, fn func(context.Context) error) error
}

// Enqueuer hands submissions to the persistence queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Store           Store
	Locker          Locker
	Queue           Enqueuer
	PriceList       *catalog.PriceList
	Currencies      *pricing.Table
	DefaultCurrency pricing.Code
	ShippingBasis   pricing.ShippingBasis
	DefaultTaxRate  decimal.Decimal
	TTL             time.Duration
	Logger          zerolog.Logger
	Now             func() time.Time
}

// Service implements draft edit sessions.
type Service struct {
	store      Store
	locker     Locker
	queue      Enqueuer
	prices     *catalog.PriceList
	currencies *pricing.Table
	currency   pricing.Code
	basis      pricing.ShippingBasis
	taxRate    decimal.Decimal
	ttl        time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService validates cfg and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("quote: store is required")
	}
	if cfg.Locker == nil {
		return nil, errors.New("quote: locker is required")
	}
	if cfg.Currencies == nil {
		cfg.Currencies = pricing.DefaultTable()
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = cfg.Currencies.Base()
	}
	code, err := cfg.Currencies.ParseCode(string(cfg.DefaultCurrency))
	if err != nil {
		return nil, fmt.Errorf("quote: default currency: %w", err)
	}
	if cfg.PriceList == nil {
		cfg.PriceList = catalog.Default()
	}
	if cfg.ShippingBasis == "" {
		cfg.ShippingBasis = pricing.ShippingTaxable
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 72 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:      cfg.Store,
		locker:     cfg.Locker,
		queue:      cfg.Queue,
		prices:     cfg.PriceList,
		currencies: cfg.Currencies,
		currency:   code,
		basis:      cfg.ShippingBasis,
		taxRate:    pricing.ParseRate(cfg.DefaultTaxRate),
		ttl:        cfg.TTL,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}, nil
}

// CreateInput opens a draft. Tax defaults to enabled at the configured rate.
type CreateInput struct {
	CustomerName string                  `json:"customerName" validate:"max=200"`
	Flow         string                  `json:"flow"`
	Currency     string                  `json:"currency"`
	HiddenFields []string                `json:"hiddenFields"`
	Items        []pricing.LineItemInput `json:"items" validate:"dive"`
	Charges      pricing.ChargesInput    `json:"charges"`
	Tax          *pricing.TaxInput       `json:"tax"`
}

// Create starts a new draft for businessID.
func (s *Service) Create(ctx context.Context, businessID string, in CreateInput) (View, error) {
	view, err := s.create(ctx, businessID, in)
	obs.ObserveQuoteMutation("create", err)
	return view, err
}

func (s *Service) create(ctx context.Context, businessID string, in CreateInput) (View, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return View{}, fmt.Errorf("%w: business id is required", ErrInvalidInput)
	}
	flow, err := pricing.ParseFlow(in.Flow)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	opts, err := pricing.OptionsFromHiddenFields(flow.Options(s.basis), in.HiddenFields)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	code := s.currency
	if strings.TrimSpace(in.Currency) != "" {
		if code, err = s.currencies.ParseCode(in.Currency); err != nil {
			return View{}, err
		}
	}
	tax := pricing.TaxSpec{Rate: s.taxRate, Enabled: true}
	if in.Tax != nil {
		tax = in.Tax.TaxSpec()
	}
	now := s.now().UTC()
	d := Draft{
		ID:           uuid.NewString(),
		BusinessID:   businessID,
		CustomerName: strings.TrimSpace(in.CustomerName),
		Flow:         flow,
		Options:      opts,
		Items:        make([]pricing.LineItem, 0, len(in.Items)),
		Charges:      in.Charges.Charges(),
		Tax:          tax,
		Currency:     code,
		Status:       StatusDraft,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, raw := range in.Items {
		if err := addItem(&d, raw.LineItem()); err != nil {
			return View{}, err
		}
	}
	b, err := s.compute(d)
	if err != nil {
		return View{}, err
	}
	if err := s.store.Put(ctx, d, s.ttl); err != nil {
		return View{}, fmt.Errorf("store draft: %w", err)
	}
	s.logger.Info().Str("quote_id", d.ID).Str("business_id", businessID).Str("flow", string(flow)).Msg("quote_created")
	return View{Draft: d, Breakdown: b}, nil
}

// Get returns the draft with a freshly computed breakdown.
func (s *Service) Get(ctx context.Context, businessID, id string) (View, error) {
	d, err := s.load(ctx, businessID, id)
	if err != nil {
		return View{}, err
	}
	b, err := s.compute(d)
	if err != nil {
		return View{}, err
	}
	return View{Draft: d, Breakdown: b}, nil
}

// AddItem appends a line item. An empty ID gets a generated one.
func (s *Service) AddItem(ctx context.Context, businessID, id string, in pricing.LineItemInput) (View, error) {
	return s.mutate(ctx, "add_item", businessID, id, func(d *Draft) error {
		return addItem(d, in.LineItem())
	})
}

// CatalogItemInput picks a price list entry. Band applies to products only.
type CatalogItemInput struct {
	Kind     string `json:"kind" validate:"required,oneof=fabric product"`
	Name     string `json:"name" validate:"required"`
	Band     string `json:"band"`
	Quantity any    `json:"quantity"`
}

// AddCatalogItem appends a line item seeded from the price list.
func (s *Service) AddCatalogItem(ctx context.Context, businessID, id string, in CatalogItemInput) (View, error) {
	item, err := s.catalogItem(in)
	if err != nil {
		obs.ObserveQuoteMutation("add_catalog_item", err)
		return View{}, err
	}
	return s.mutate(ctx, "add_catalog_item", businessID, id, func(d *Draft) error {
		return addItem(d, item)
	})
}

func (s *Service) catalogItem(in CatalogItemInput) (pricing.LineItem, error) {
	qty := pricing.ParseQuantity(in.Quantity)
	switch strings.ToLower(strings.TrimSpace(in.Kind)) {
	case "fabric":
		f, err := s.prices.Fabric(in.Name)
		if err != nil {
			return pricing.LineItem{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return f.LineItem(qty), nil
	case "product":
		p, err := s.prices.Product(in.Name)
		if err != nil {
			return pricing.LineItem{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		band, err := catalog.ParseBand(in.Band)
		if err != nil {
			return pricing.LineItem{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return p.LineItem(band, qty)
	default:
		return pricing.LineItem{}, fmt.Errorf("%w: unknown catalog kind %q", ErrInvalidInput, in.Kind)
	}
}

// ItemPatch changes selected fields of a line item; nil fields are kept.
type ItemPatch struct {
	Label    *string `json:"label"`
	UnitCost any     `json:"unitCost"`
	Quantity any     `json:"quantity"`
	Category *string `json:"category"`
}

// UpdateItem applies patch to one line item.
func (s *Service) UpdateItem(ctx context.Context, businessID, id, itemID string, patch ItemPatch) (View, error) {
	return s.mutate(ctx, "update_item", businessID, id, func(d *Draft) error {
		i := d.itemIndex(itemID)
		if i < 0 {
			return fmt.Errorf("%w: line item %q", ErrNotFound, itemID)
		}
		it := d.Items[i]
		if patch.Label != nil {
			it.Label = strings.TrimSpace(*patch.Label)
		}
		if patch.UnitCost != nil {
			it.UnitCost = pricing.ParseAmount(patch.UnitCost)
		}
		if patch.Quantity != nil {
			it.Quantity = pricing.ParseQuantity(patch.Quantity)
		}
		if patch.Category != nil {
			c := pricing.Category(*patch.Category)
			if !pricing.KnownCategory(c) {
				return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, *patch.Category)
			}
			it.Category = pricing.CanonicalCategory(c)
		}
		d.Items[i] = it
		return nil
	})
}

// RemoveItem deletes one line item.
func (s *Service) RemoveItem(ctx context.Context, businessID, id, itemID string) (View, error) {
	return s.mutate(ctx, "remove_item", businessID, id, func(d *Draft) error {
		i := d.itemIndex(itemID)
		if i < 0 {
			return fmt.Errorf("%w: line item %q", ErrNotFound, itemID)
		}
		d.Items = append(d.Items[:i], d.Items[i+1:]...)
		return nil
	})
}

// SetCharges replaces workmanship, profit margin and shipping.
func (s *Service) SetCharges(ctx context.Context, businessID, id string, in pricing.ChargesInput) (View, error) {
	return s.mutate(ctx, "set_charges", businessID, id, func(d *Draft) error {
		d.Charges = in.Charges()
		return nil
	})
}

// SetTax replaces the tax rate and toggle.
func (s *Service) SetTax(ctx context.Context, businessID, id string, in pricing.TaxInput) (View, error) {
	return s.mutate(ctx, "set_tax", businessID, id, func(d *Draft) error {
		d.Tax = in.TaxSpec()
		return nil
	})
}

// SetCurrency switches the display currency. Unknown codes are rejected with
// pricing.ErrInvalidCurrency and leave the draft untouched.
func (s *Service) SetCurrency(ctx context.Context, businessID, id, code string) (View, error) {
	return s.mutate(ctx, "set_currency", businessID, id, func(d *Draft) error {
		c, err := s.currencies.ParseCode(code)
		if err != nil {
			return err
		}
		d.Currency = c
		return nil
	})
}

// Submit freezes the draft and enqueues its save payload. Submitting twice
// returns the frozen view without enqueueing again.
func (s *Service) Submit(ctx context.Context, businessID, id string) (View, error) {
	if s.queue == nil {
		return View{}, errors.New("quote: submission queue not configured")
	}
	var view View
	err := s.locker.WithDraft(ctx, id, func(ctx context.Context) error {
		d, err := s.load(ctx, businessID, id)
		if err != nil {
			return err
		}
		b, err := s.compute(d)
		if err != nil {
			return err
		}
		if d.Status == StatusSubmitted {
			view = View{Draft: d, Breakdown: b}
			return nil
		}
		if len(d.Items) == 0 {
			return fmt.Errorf("%w: cannot submit a draft without line items", ErrInvalidInput)
		}
		now := s.now().UTC()
		d.Status = StatusSubmitted
		d.SubmittedAt = &now
		d.UpdatedAt = now
		d.Version++
		payload, err := json.Marshal(newSavePayload(d, b))
		if err != nil {
			return err
		}
		if err := s.queue.Enqueue(ctx, queue.Task{Kind: SubmittedKind, Payload: payload, IdempotencyKey: d.ID}); err != nil {
			return fmt.Errorf("enqueue submission: %w", err)
		}
		if err := s.store.Put(ctx, d, s.ttl); err != nil {
			return fmt.Errorf("store draft: %w", err)
		}
		s.logger.Info().Str("quote_id", d.ID).Str("business_id", d.BusinessID).Str("overall_cost", b.GrandTotal.Amount.String()).Msg("quote_submitted")
		view = View{Draft: d, Breakdown: b}
		return nil
	})
	obs.ObserveSubmission(err)
	return view, err
}

// Document prepares view for invoice rendering. The invoice number is derived
// from the quote id and the submission time, or the last edit for open drafts.
func (s *Service) Document(view View, businessName string) (invoice.Document, error) {
	cur, err := s.currencies.Lookup(view.Draft.Currency)
	if err != nil {
		return invoice.Document{}, err
	}
	issued := view.Draft.UpdatedAt
	if view.Draft.SubmittedAt != nil {
		issued = *view.Draft.SubmittedAt
	}
	return invoice.Document{
		Number:       invoice.NumberFor(view.Draft.ID, issued),
		BusinessName: businessName,
		CustomerName: view.Draft.CustomerName,
		IssuedAt:     issued,
		Currency:     cur,
		Breakdown:    view.Breakdown,
	}, nil
}

// Delete discards a draft.
func (s *Service) Delete(ctx context.Context, businessID, id string) error {
	err := s.locker.WithDraft(ctx, id, func(ctx context.Context) error {
		if _, err := s.load(ctx, businessID, id); err != nil {
			return err
		}
		return s.store.Delete(ctx, id)
	})
	obs.ObserveQuoteMutation("delete", err)
	return err
}

// mutate loads, edits, recomputes and stores a draft under its lock. The
// draft is only written when the edit and the recomputation both succeed.
func (s *Service) mutate(ctx context.Context, op, businessID, id string, edit func(*Draft) error) (View, error) {
	var view View
	err := s.locker.WithDraft(ctx, id, func(ctx context.Context) error {
		d, err := s.load(ctx, businessID, id)
		if err != nil {
			return err
		}
		if d.Status == StatusSubmitted {
			return ErrSubmitted
		}
		if err := edit(&d); err != nil {
			return err
		}
		b, err := s.compute(d)
		if err != nil {
			return err
		}
		d.Version++
		d.UpdatedAt = s.now().UTC()
		if err := s.store.Put(ctx, d, s.ttl); err != nil {
			return fmt.Errorf("store draft: %w", err)
		}
		view = View{Draft: d, Breakdown: b}
		return nil
	})
	obs.ObserveQuoteMutation(op, err)
	if err != nil {
		s.logger.Debug().Err(err).Str("quote_id", id).Str("op", op).Msg("quote_mutation_failed")
	}
	return view, err
}

func (s *Service) load(ctx context.Context, businessID, id string) (Draft, error) {
	if strings.TrimSpace(businessID) == "" || strings.TrimSpace(id) == "" {
		return Draft{}, ErrNotFound
	}
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if d.BusinessID != businessID {
		return Draft{}, ErrNotFound
	}
	return d, nil
}

func (s *Service) compute(d Draft) (pricing.Breakdown, error) {
	b, err := pricing.ComputeBreakdown(d.Items, d.Charges, d.Tax, pricing.CurrencyContext{Display: d.Currency, Table: s.currencies}, d.Options)
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.ObserveBreakdown(string(d.Flow), string(d.Currency), result)
	return b, err
}

func addItem(d *Draft, it pricing.LineItem) error {
	if !pricing.KnownCategory(it.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, it.Category)
	}
	it.Label = strings.TrimSpace(it.Label)
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if d.itemIndex(it.ID) >= 0 {
		return fmt.Errorf("%w: duplicate line item id %q", ErrInvalidInput, it.ID)
	}
	d.Items = append(d.Items, it)
	return nil
}
