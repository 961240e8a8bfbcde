// Package marketplace is the explicit mutation API for shipments and bids. In "api" trigger
// mode it invokes the go-live reactors right after each successful write.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"shipshape-api-server/internal/golive"
	"shipshape-api-server/internal/models"
)

type Store interface {
	GetShipment(ctx context.Context, id string) (*models.Shipment, error)
	CreateShipment(ctx context.Context, sh *models.Shipment) error
	ReplaceShipment(ctx context.Context, sh *models.Shipment, expectedRevision int64) (*models.Shipment, error)
	AwardShipment(ctx context.Context, id string, bid models.Bid, now time.Time) (*models.Shipment, error)
	ListShipmentsByExporter(ctx context.Context, exporterID string) ([]models.Shipment, error)

	InsertBid(ctx context.Context, bid *models.Bid) error
	GetBid(ctx context.Context, id string) (*models.Bid, error)
	ListBids(ctx context.Context, shipmentID string) ([]models.Bid, error)
	Register(ctx context.Context, shipmentID, carrierID string, now time.Time) (bool, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
}

type ShipmentReactor interface {
	OnShipmentWritten(ctx context.Context, before, after *models.Shipment) golive.WriteReport
}

type BidReactor interface {
	OnBidCreated(ctx context.Context, bid *models.Bid) golive.StepResult
}

// ShipmentInput là dữ liệu exporter gửi lên khi tạo hoặc sửa shipment.
type ShipmentInput struct {
	ExporterID  string                `json:"exporterId"`
	ProductName string                `json:"productName"`
	Origin      string                `json:"origin"`
	Destination string                `json:"destination"`
	CargoType   string                `json:"cargoType"`
	WeightKg    float64               `json:"weightKg"`
	Status      models.ShipmentStatus `json:"status"`
	GoLiveAt    *time.Time            `json:"goLiveAt"`
}

type Service struct {
	store           Store
	shipmentReactor ShipmentReactor
	bidReactor      BidReactor
	now             func() time.Time
}

// NewService wires the reactors inline when they are non-nil; pass nil for both when
// change streams drive them instead.
func NewService(store Store, shipmentReactor ShipmentReactor, bidReactor BidReactor) *Service {
	return &Service{
		store:           store,
		shipmentReactor: shipmentReactor,
		bidReactor:      bidReactor,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.New().String()[:8]))
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", models.ErrValidation, fmt.Sprintf(format, args...))
}

func validateInput(in ShipmentInput) error {
	if strings.TrimSpace(in.ProductName) == "" {
		return validationError("productName is required")
	}
	if in.WeightKg < 0 {
		return validationError("weightKg must not be negative")
	}
	switch in.Status {
	case models.ShipmentDraft:
	case models.ShipmentScheduled:
		if in.GoLiveAt == nil || in.GoLiveAt.IsZero() {
			return validationError("goLiveAt is required for a scheduled shipment")
		}
	default:
		return validationError("status must be %q or %q", models.ShipmentDraft, models.ShipmentScheduled)
	}
	return nil
}

func (s *Service) GetShipment(ctx context.Context, id string) (*models.Shipment, error) {
	return s.store.GetShipment(ctx, id)
}

func (s *Service) ListShipmentsByExporter(ctx context.Context, exporterID string) ([]models.Shipment, error) {
	return s.store.ListShipmentsByExporter(ctx, exporterID)
}

func (s *Service) CreateShipment(ctx context.Context, in ShipmentInput) (*models.Shipment, error) {
	if strings.TrimSpace(in.ExporterID) == "" {
		return nil, validationError("exporterId is required")
	}
	if in.Status == "" {
		in.Status = models.ShipmentDraft
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	sh := &models.Shipment{
		ID:          newID("SHP"),
		ExporterID:  in.ExporterID,
		ProductName: in.ProductName,
		Origin:      in.Origin,
		Destination: in.Destination,
		CargoType:   in.CargoType,
		WeightKg:    in.WeightKg,
		Status:      in.Status,
		GoLiveAt:    in.GoLiveAt,
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateShipment(ctx, sh); err != nil {
		return nil, err
	}
	s.reactToShipment(ctx, nil, sh)
	return sh, nil
}

// UpdateShipment replaces the editable fields of a draft or scheduled shipment. An empty
// status keeps the current one. revision must be the revision the caller last read; a stale
// revision yields models.ErrRevisionConflict.
func (s *Service) UpdateShipment(ctx context.Context, id string, in ShipmentInput, revision int64) (*models.Shipment, error) {
	current, err := s.store.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.ShipmentDraft && current.Status != models.ShipmentScheduled {
		return nil, fmt.Errorf("%w: shipment %s is %s", models.ErrInvalidState, id, current.Status)
	}
	if in.Status == "" {
		in.Status = current.Status
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if current.Revision != revision {
		return nil, models.ErrRevisionConflict
	}

	after := *current
	after.ProductName = in.ProductName
	after.Origin = in.Origin
	after.Destination = in.Destination
	after.CargoType = in.CargoType
	after.WeightKg = in.WeightKg
	after.Status = in.Status
	after.GoLiveAt = in.GoLiveAt
	after.GoLiveTaskName = ""
	after.Revision = revision + 1
	after.UpdatedAt = s.now()

	before, err := s.store.ReplaceShipment(ctx, &after, revision)
	if err != nil {
		return nil, err
	}
	s.reactToShipment(ctx, before, &after)
	return &after, nil
}

func (s *Service) RegisterInterest(ctx context.Context, shipmentID, carrierID string) (bool, error) {
	if strings.TrimSpace(carrierID) == "" {
		return false, validationError("carrierId is required")
	}
	sh, err := s.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return false, err
	}
	if sh.Status != models.ShipmentScheduled {
		return false, fmt.Errorf("%w: registration is only open while the shipment is scheduled", models.ErrInvalidState)
	}
	return s.store.Register(ctx, shipmentID, carrierID, s.now())
}

func (s *Service) PlaceBid(ctx context.Context, shipmentID, carrierID, carrierName string, amount float64) (*models.Bid, error) {
	if strings.TrimSpace(carrierID) == "" {
		return nil, validationError("carrierId is required")
	}
	if amount <= 0 {
		return nil, validationError("bidAmount must be positive")
	}
	sh, err := s.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.Status != models.ShipmentLive {
		return nil, fmt.Errorf("%w: bidding is only open while the shipment is live", models.ErrInvalidState)
	}

	if carrierName == "" {
		// Tên hiển thị lấy từ hồ sơ carrier nếu client không gửi.
		if u, err := s.store.GetUser(ctx, carrierID); err == nil {
			carrierName = u.DisplayName()
		} else if !errors.Is(err, models.ErrNotFound) {
			log.Printf("[marketplace] could not resolve carrier %s: %v", carrierID, err)
		}
	}

	bid := &models.Bid{
		ID:          newID("BID"),
		ShipmentID:  shipmentID,
		CarrierID:   carrierID,
		CarrierName: carrierName,
		BidAmount:   amount,
		CreatedAt:   s.now(),
	}
	if err := s.store.InsertBid(ctx, bid); err != nil {
		return nil, err
	}
	if s.bidReactor != nil {
		if res := s.bidReactor.OnBidCreated(context.WithoutCancel(ctx), bid); res.Failed() {
			log.Printf("[marketplace] bid %s saved, exporter not notified: %s (%s)", bid.ID, res.Reason, res.Outcome)
		}
	}
	return bid, nil
}

func (s *Service) ListBids(ctx context.Context, shipmentID string) ([]models.Bid, error) {
	if _, err := s.store.GetShipment(ctx, shipmentID); err != nil {
		return nil, err
	}
	return s.store.ListBids(ctx, shipmentID)
}

// Award closes a live shipment with the given bid.
func (s *Service) Award(ctx context.Context, shipmentID, bidID string) (*models.Shipment, error) {
	if bidID == "" {
		return nil, validationError("bidId is required")
	}
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, validationError("bid %s does not exist", bidID)
		}
		return nil, err
	}
	if bid.ShipmentID != shipmentID {
		return nil, validationError("bid %s is not on shipment %s", bidID, shipmentID)
	}

	now := s.now()
	before, err := s.store.AwardShipment(ctx, shipmentID, *bid, now)
	if err != nil {
		return nil, err
	}
	after := *before
	after.Status = models.ShipmentAwarded
	after.WinningCarrierID = bid.CarrierID
	after.WinningCarrierName = bid.CarrierName
	after.WinningBidID = bid.ID
	after.WinningBidAmount = bid.BidAmount
	after.Revision = before.Revision + 1
	after.UpdatedAt = now

	s.reactToShipment(ctx, before, &after)
	return &after, nil
}

func (s *Service) reactToShipment(ctx context.Context, before, after *models.Shipment) {
	if s.shipmentReactor == nil {
		return
	}
	// The write is committed; the reactor outlives a disconnected client.
	report := s.shipmentReactor.OnShipmentWritten(context.WithoutCancel(ctx), before, after)
	for name, step := range map[string]golive.StepResult{
		"cancel stale task": report.CancelStale,
		"award":             report.Award,
		"schedule":          report.Schedule,
		"persist task":      report.Persist,
	} {
		if step.Failed() {
			log.Printf("[marketplace] shipment %s written, reactor step %q %s: %v", report.ShipmentID, name, step.Outcome, step.Err)
		}
	}
}
