package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pulsatel/prepaid_services/internal/platform/messagebroker"
	"github.com/pulsatel/prepaid_services/internal/purchase_service/domain"
	"github.com/pulsatel/prepaid_services/internal/purchase_service/repository"
)

const (
	// NATS subject for successful activations.
	PackageActivatedSubject = "purchases.package.activated"

	defaultCallTimeout         = 5 * time.Second
	defaultCompensationMax     = 5
	defaultCompensationDelay   = 200 * time.Millisecond
	reconciliationCreditReason = "compensating credit exhausted after activation failure"
)

// PackageActivatedEvent is the payload published on PackageActivatedSubject.
type PackageActivatedEvent struct {
	ActivationID string          `json:"activation_id"`
	PhoneNumber  string          `json:"phone_number"`
	PackageCode  string          `json:"package_code"`
	Price        decimal.Decimal `json:"price"`
	ActivatedAt  time.Time       `json:"activated_at"`
}

// PurchaseService coordinates one purchase request end-to-end: customer
// validation, package resolution, conditional debit, activation, and
// compensation when activation fails after the debit.
//
// Collaborator errors never cross the Purchase boundary; every code path
// ends in a terminal PurchaseResult. Cross-request safety comes entirely
// from the ledger's conditional debit, so the service holds no shared
// mutable state and concurrent Purchase calls are safe.
type PurchaseService struct {
	directory  repository.CustomerDirectory
	catalog    repository.PackageCatalog
	ledger     repository.BalanceLedger
	registry   repository.ActivationRegistry
	reconRepo  repository.ReconciliationRepository
	natsClient *messagebroker.NatsClient
	logger     *slog.Logger

	callTimeout       time.Duration
	compensationMax   int
	compensationDelay time.Duration
}

// PurchaseServiceOptions tunes timeout and compensation behavior. Zero
// values fall back to defaults.
type PurchaseServiceOptions struct {
	CallTimeout       time.Duration
	CompensationMax   int
	CompensationDelay time.Duration
}

// NewPurchaseService creates a new PurchaseService. natsClient may be nil,
// in which case activation events are not published.
func NewPurchaseService(
	directory repository.CustomerDirectory,
	catalog repository.PackageCatalog,
	ledger repository.BalanceLedger,
	registry repository.ActivationRegistry,
	reconRepo repository.ReconciliationRepository,
	natsClient *messagebroker.NatsClient,
	logger *slog.Logger,
	opts PurchaseServiceOptions,
) *PurchaseService {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.CompensationMax <= 0 {
		opts.CompensationMax = defaultCompensationMax
	}
	if opts.CompensationDelay <= 0 {
		opts.CompensationDelay = defaultCompensationDelay
	}
	return &PurchaseService{
		directory:         directory,
		catalog:           catalog,
		ledger:            ledger,
		registry:          registry,
		reconRepo:         reconRepo,
		natsClient:        natsClient,
		logger:            logger.With("service", "purchase"),
		callTimeout:       opts.CallTimeout,
		compensationMax:   opts.CompensationMax,
		compensationDelay: opts.CompensationDelay,
	}
}

// Purchase executes one purchase request. Each collaborator is called once,
// under its own timeout; a timed-out call counts as a failed call with the
// same compensation obligations.
func (s *PurchaseService) Purchase(ctx context.Context, phoneNumber, packageCode string) *domain.PurchaseResult {
	start := time.Now()
	defer func() {
		purchaseProcessingDurationHist.Observe(time.Since(start).Seconds())
	}()

	logger := s.logger.With("phone_number", phoneNumber, "package_code", packageCode)

	// Step 1: customer must be active. Lookup errors fail closed.
	active, err := s.isCustomerActive(ctx, phoneNumber)
	if err != nil {
		logger.ErrorContext(ctx, "Customer directory lookup failed, rejecting purchase", "error", err)
	}
	if err != nil || !active {
		purchasesProcessedCounter.WithLabelValues("invalid_customer").Inc()
		return domain.FailedPurchase(domain.MsgInvalidPhoneNumber)
	}

	// Step 2: resolve the package. Unknown code and lookup failure are both
	// purchase-blocking; they are logged distinctly by the catalog.
	pkg, err := s.resolvePackage(ctx, packageCode)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.ErrorContext(ctx, "Package catalog lookup failed, rejecting purchase", "error", err)
		}
		purchasesProcessedCounter.WithLabelValues("package_unavailable").Inc()
		return domain.FailedPurchase(domain.MsgPackageNotAvailable)
	}

	// Step 3: advisory balance check. An unreadable balance is treated as
	// zero; the authoritative check is the conditional debit in step 4.
	balance, err := s.readBalance(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.InfoContext(ctx, "No balance row for customer, treating as zero")
		} else {
			logger.ErrorContext(ctx, "Balance read failed, treating as zero", "error", err)
		}
		balance = decimal.Zero
	}
	if balance.LessThan(pkg.Price) {
		logger.InfoContext(ctx, "Insufficient balance for package",
			"balance", balance, "price", pkg.Price)
		purchasesProcessedCounter.WithLabelValues("insufficient_funds").Inc()
		return domain.FailedPurchase(domain.MsgInsufficientBalance)
	}

	// Step 4: conditional debit. The only point at which funds leave the
	// ledger; a false return means the balance was left untouched.
	debited, err := s.debit(ctx, phoneNumber, pkg.Price)
	if err != nil {
		logger.ErrorContext(ctx, "Debit failed", "error", err, "price", pkg.Price)
	}
	if err != nil || !debited {
		purchasesProcessedCounter.WithLabelValues("debit_failed").Inc()
		return domain.FailedPurchase(domain.MsgPaymentFailed)
	}

	// Step 5: activate. On failure the debit must be compensated.
	record := &domain.ActivationRecord{
		ID:           uuid.NewString(),
		PhoneNumber:  phoneNumber,
		PackageCode:  pkg.Code,
		QuotaMB:      pkg.QuotaMB,
		ValidityDays: pkg.ValidityDays,
		ActivatedAt:  time.Now().UTC(),
	}
	if err := s.activate(ctx, record); err != nil {
		logger.ErrorContext(ctx, "Package activation failed after debit, compensating", "error", err, "price", pkg.Price)
		s.compensateDebit(ctx, phoneNumber, pkg, record.ID)
		purchasesProcessedCounter.WithLabelValues("activation_failed").Inc()
		return domain.FailedPurchase(domain.MsgActivationFailed)
	}

	// Remaining balance is computed from the pre-debit read; the debit amount
	// is fixed at the package price, so a re-read is not needed.
	remaining := balance.Sub(pkg.Price)

	s.publishActivatedEvent(ctx, record, pkg)

	logger.InfoContext(ctx, "Package purchased",
		"activation_id", record.ID, "price", pkg.Price, "remaining_balance", remaining)
	purchasesProcessedCounter.WithLabelValues("success").Inc()

	return &domain.PurchaseResult{
		Status:           domain.PurchaseStatusSuccess,
		Message:          domain.MsgPackageActivated,
		RemainingBalance: &remaining,
		PackageDetails:   pkg,
	}
}

func (s *PurchaseService) isCustomerActive(ctx context.Context, phoneNumber string) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.directory.IsActive(cctx, phoneNumber)
}

func (s *PurchaseService) resolvePackage(ctx context.Context, code string) (*domain.Package, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.catalog.GetByCode(cctx, code)
}

func (s *PurchaseService) readBalance(ctx context.Context, phoneNumber string) (decimal.Decimal, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.ledger.GetBalance(cctx, phoneNumber)
}

func (s *PurchaseService) debit(ctx context.Context, phoneNumber string, amount decimal.Decimal) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.ledger.Debit(cctx, phoneNumber, amount)
}

func (s *PurchaseService) activate(ctx context.Context, record *domain.ActivationRecord) error {
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.registry.Activate(cctx, record)
}

// compensateDebit restores debited funds after a failed activation. It is
// detached from the request context so a caller disconnect cannot strand the
// funds, retried until it sticks, and parked in the reconciliation queue when
// every attempt fails. Every attempt carries the activation ID as the credit
// idempotency key: a retry after a credit that committed but lost its
// acknowledgement is a no-op, never a second increment.
func (s *PurchaseService) compensateDebit(ctx context.Context, phoneNumber string, pkg *domain.Package, activationID string) {
	base := context.WithoutCancel(ctx)

	for attempt := 1; attempt <= s.compensationMax; attempt++ {
		cctx, cancel := context.WithTimeout(base, s.callTimeout)
		credited, err := s.ledger.Credit(cctx, phoneNumber, pkg.Price, activationID)
		cancel()

		if err == nil && credited {
			s.logger.InfoContext(ctx, "Compensating credit applied",
				"phone_number", phoneNumber, "amount", pkg.Price, "attempt", attempt)
			return
		}

		compensationCreditFailuresCounter.Inc()
		s.logger.WarnContext(ctx, "Compensating credit attempt failed",
			"phone_number", phoneNumber, "amount", pkg.Price, "attempt", attempt, "error", err)

		if attempt < s.compensationMax {
			time.Sleep(s.compensationDelay)
		}
	}

	entry := &domain.ReconciliationEntry{
		ID:           uuid.NewString(),
		PhoneNumber:  phoneNumber,
		PackageCode:  pkg.Code,
		ActivationID: &activationID,
		Amount:       pkg.Price,
		Reason:       reconciliationCreditReason,
	}

	cctx, cancel := context.WithTimeout(base, s.callTimeout)
	defer cancel()
	if err := s.reconRepo.Create(cctx, entry); err != nil {
		// Funds are debited, not credited back, and not parked. This needs
		// operator attention; the log line is the last trace.
		s.logger.ErrorContext(ctx, "CRITICAL: compensating credit and reconciliation dead-letter both failed",
			"phone_number", phoneNumber, "amount", pkg.Price, "activation_id", activationID, "error", err)
		return
	}

	reconciliationEntriesQueuedCounter.Inc()
	s.logger.ErrorContext(ctx, "Compensating credit exhausted, entry queued for reconciliation",
		"phone_number", phoneNumber, "amount", pkg.Price, "reconciliation_id", entry.ID)
}

// publishActivatedEvent is best-effort; a publish failure never affects the
// purchase outcome.
func (s *PurchaseService) publishActivatedEvent(ctx context.Context, record *domain.ActivationRecord, pkg *domain.Package) {
	if s.natsClient == nil {
		return
	}

	event := PackageActivatedEvent{
		ActivationID: record.ID,
		PhoneNumber:  record.PhoneNumber,
		PackageCode:  record.PackageCode,
		Price:        pkg.Price,
		ActivatedAt:  record.ActivatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal activation event", "error", err, "activation_id", record.ID)
		return
	}

	// The publish flush honors the context deadline.
	cctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if err := s.natsClient.Publish(cctx, PackageActivatedSubject, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish activation event", "error", err, "activation_id", record.ID)
	}
}
