package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danielmarv/hms-front-sub002/internal/app"
	"github.com/danielmarv/hms-front-sub002/internal/domain"
	"github.com/danielmarv/hms-front-sub002/internal/storage/memory"
)

// ---- fakes ----

type fakePMS struct {
	rooms     []domain.AvailableRoom
	searchErr error
	guests    []domain.Guest
	roomTypes []domain.RoomType
	record    domain.BookingRecord
	createErr error

	searchCalls int
	createCalls int
	idemKeys    []string

	onSearch func() // runs while the search is "in flight"
	onCreate func()
}

func (f *fakePMS) SearchRooms(ctx context.Context, hotelID string, c domain.RoomSearchCriteria) ([]domain.AvailableRoom, error) {
	f.searchCalls++
	if f.onSearch != nil {
		f.onSearch()
	}
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.rooms, nil
}

func (f *fakePMS) ListGuests(ctx context.Context, hotelID string, q domain.GuestQuery) ([]domain.Guest, error) {
	return f.guests, nil
}

func (f *fakePMS) ListRoomTypes(ctx context.Context, hotelID string) ([]domain.RoomType, error) {
	return f.roomTypes, nil
}

func (f *fakePMS) CreateBooking(ctx context.Context, hotelID string, d domain.DraftReservation, idemKey string) (domain.BookingRecord, error) {
	f.createCalls++
	f.idemKeys = append(f.idemKeys, idemKey)
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.createErr != nil {
		return domain.BookingRecord{}, f.createErr
	}
	return f.record, nil
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string, dst any) (bool, error) { return false, nil }
func (noopCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	return nil
}
func (noopCache) Del(ctx context.Context, key string) error { return nil }

// ---- helpers ----

var (
	deluxe = domain.RoomType{ID: "rt-1", Name: "Deluxe", Category: "deluxe", BasePricePerNight: 100}

	room101 = domain.AvailableRoom{
		ID: "room-101", Number: "101", Floor: "1", MaxOccupancy: 2, RoomType: deluxe,
	}
	room102 = domain.AvailableRoom{
		ID: "room-102", Number: "102", Floor: "1", MaxOccupancy: 4, RoomType: deluxe,
	}

	ana = domain.Guest{ID: "guest-1", FullName: "Ana Costa", Email: "ana@example.com"}
)

func newWizard(t *testing.T, pms *fakePMS) (*app.WizardService, *memory.SessionStore) {
	t.Helper()
	sessions := memory.NewSessionStore(time.Hour)
	catalog := app.NewCatalogService(pms, noopCache{}, time.Minute, 50)
	return app.NewWizardService(pms, sessions, catalog), sessions
}

func defaultPMS() *fakePMS {
	return &fakePMS{
		rooms:     []domain.AvailableRoom{room101, room102},
		guests:    []domain.Guest{ana},
		roomTypes: []domain.RoomType{deluxe},
		record:    domain.BookingRecord{ID: "bk-1", ConfirmationCode: "CONF-1"},
	}
}

func setDates(t *testing.T, svc *app.WizardService, id, in, out string) app.WizardSnapshot {
	t.Helper()
	ci, co := day(in), day(out)
	snap, err := svc.UpdateDraft(id, domain.DraftUpdate{CheckIn: &ci, CheckOut: &co})
	if err != nil {
		t.Fatalf("set dates: %v", err)
	}
	return snap
}

// walk a wizard to the confirmation step
func toConfirmation(t *testing.T, svc *app.WizardService, id string) {
	t.Helper()
	setDates(t, svc, id, "2024-01-01", "2024-01-04")
	if _, err := svc.SearchRooms(context.Background(), id, app.SearchFilters{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := svc.SelectRoom(id, room101.ID); err != nil {
		t.Fatalf("select room: %v", err)
	}
	if _, err := svc.Next(id); err != nil {
		t.Fatalf("next 2->3: %v", err)
	}
	if _, err := svc.SelectGuest(id, ana.ID); err != nil {
		t.Fatalf("select guest: %v", err)
	}
	if _, err := svc.Next(id); err != nil {
		t.Fatalf("next 3->4: %v", err)
	}
}

// ---- tests ----

func TestStart_DefaultsAndLookups(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, err := svc.Start(context.Background(), "hotel-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.Step != domain.StepDatesAndGuests {
		t.Fatalf("step = %d, want 1", snap.Step)
	}
	d := snap.Draft
	if d.OccupantCount != 1 || d.BookingSource != domain.SourceDirect ||
		d.PaymentStatus != domain.PaymentPending || d.TaxRatePercent != 10 || d.DiscountAmount != 0 {
		t.Fatalf("unexpected defaults: %+v", d)
	}
	if len(snap.Guests) != 1 || len(snap.RoomTypes) != 1 {
		t.Fatalf("lookup lists not loaded: %+v", snap)
	}
}

func TestStart_NoHotel(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	if _, err := svc.Start(context.Background(), ""); !errors.Is(err, domain.ErrNoActiveHotel) {
		t.Fatalf("err = %v, want ErrNoActiveHotel", err)
	}
}

func TestSearch_GateBlocksMissingCheckOut(t *testing.T) {
	pms := defaultPMS()
	svc, _ := newWizard(t, pms)
	snap, _ := svc.Start(context.Background(), "hotel-1")

	ci := day("2024-01-01")
	if _, err := svc.UpdateDraft(snap.SessionID, domain.DraftUpdate{CheckIn: &ci}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{})
	fe, ok := domain.AsFieldErrors(err)
	if !ok {
		t.Fatalf("expected field errors, got %v", err)
	}
	if _, named := fe["check_out"]; !named {
		t.Fatalf("error must name check_out: %v", fe)
	}
	if got.Step != domain.StepDatesAndGuests {
		t.Fatalf("step advanced past a failed gate: %d", got.Step)
	}
	if pms.searchCalls != 0 {
		t.Fatalf("availability must not be queried on a blocked gate")
	}
}

func TestSearch_GateBlocksSameDayStay(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")
	setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-01")

	got, err := svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{})
	fe, ok := domain.AsFieldErrors(err)
	if !ok || fe["check_out"] == "" {
		t.Fatalf("same-day stay must be a validation error, got %v", err)
	}
	if got.Step != domain.StepDatesAndGuests {
		t.Fatalf("step = %d, want 1", got.Step)
	}
	if got.Pricing.Total != 0 {
		t.Fatalf("same-day pricing must be zero, got %v", got.Pricing.Total)
	}
}

func TestSearch_ZeroRoomsStillAdvances(t *testing.T) {
	pms := defaultPMS()
	pms.rooms = nil
	svc, _ := newWizard(t, pms)
	snap, _ := svc.Start(context.Background(), "hotel-1")
	setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-04")

	got, err := svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{})
	if err != nil {
		t.Fatalf("zero results is not an error: %v", err)
	}
	if got.Step != domain.StepRoomSelection {
		t.Fatalf("step = %d, want 2", got.Step)
	}
	if got.Rooms == nil || len(got.Rooms) != 0 {
		t.Fatalf("want an empty (non-nil) room list, got %#v", got.Rooms)
	}
}

func TestSearch_FailureKeepsStepOneAndAllowsRetry(t *testing.T) {
	pms := defaultPMS()
	pms.searchErr = errors.New("connection refused")
	svc, _ := newWizard(t, pms)
	snap, _ := svc.Start(context.Background(), "hotel-1")
	setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-04")

	got, err := svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{})
	var ce *app.CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}
	if got.Step != domain.StepDatesAndGuests || got.Searching {
		t.Fatalf("failed search must leave the wizard retryable on step 1: %+v", got)
	}

	// manual retry succeeds
	pms.searchErr = nil
	got, err = svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{})
	if err != nil || got.Step != domain.StepRoomSelection {
		t.Fatalf("retry should advance: step=%d err=%v", got.Step, err)
	}
}

func TestSearch_StaleResultDropped(t *testing.T) {
	pms := defaultPMS()
	svc, _ := newWizard(t, pms)
	snap, _ := svc.Start(context.Background(), "hotel-1")
	setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-04")

	// the draft changes while the search is in flight
	pms.onSearch = func() {
		setDates(t, svc, snap.SessionID, "2024-02-01", "2024-02-05")
	}
	got, err := svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{})
	if !errors.Is(err, app.ErrStaleResult) {
		t.Fatalf("err = %v, want ErrStaleResult", err)
	}
	if got.Step != domain.StepDatesAndGuests || got.Rooms != nil {
		t.Fatalf("stale results must not be applied: %+v", got)
	}
}

func TestSelectRoom_PricingScenarioA(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")
	setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-04")
	if _, err := svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{}); err != nil {
		t.Fatalf("search: %v", err)
	}

	got, err := svc.SelectRoom(snap.SessionID, room101.ID)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Draft.RoomID != room101.ID || got.SelectedRoom == nil {
		t.Fatalf("selection register not set: %+v", got)
	}
	p := got.Pricing
	if p.Nights != 3 || p.Subtotal != 300 || p.TaxAmount != 30 || p.Total != 330 {
		t.Fatalf("unexpected pricing: %+v", p)
	}
}

func TestSelectRoom_UnknownRoomRejected(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")
	setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-04")
	_, _ = svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{})

	_, err := svc.SelectRoom(snap.SessionID, "room-999")
	if fe, ok := domain.AsFieldErrors(err); !ok || fe["room_id"] == "" {
		t.Fatalf("expected room_id field error, got %v", err)
	}
}

func TestNext_OccupancyGate(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")
	setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-04")
	three := 3
	if _, err := svc.UpdateDraft(snap.SessionID, domain.DraftUpdate{OccupantCount: &three}); err != nil {
		t.Fatalf("update: %v", err)
	}
	_, _ = svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{})

	// room101 sleeps 2, draft wants 3
	if _, err := svc.SelectRoom(snap.SessionID, room101.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	got, err := svc.Next(snap.SessionID)
	if fe, ok := domain.AsFieldErrors(err); !ok || fe["occupant_count"] == "" {
		t.Fatalf("expected occupant_count gate error, got %v", err)
	}
	if got.Step != domain.StepRoomSelection {
		t.Fatalf("step = %d, want 2", got.Step)
	}

	// the bigger room passes
	if _, err := svc.SelectRoom(snap.SessionID, room102.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	got, err = svc.Next(snap.SessionID)
	if err != nil || got.Step != domain.StepGuestAndDetails {
		t.Fatalf("step=%d err=%v, want 3", got.Step, err)
	}
}

func TestNext_GuestGate(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")
	setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-04")
	_, _ = svc.SearchRooms(context.Background(), snap.SessionID, app.SearchFilters{})
	_, _ = svc.SelectRoom(snap.SessionID, room101.ID)
	_, _ = svc.Next(snap.SessionID)

	got, err := svc.Next(snap.SessionID)
	if fe, ok := domain.AsFieldErrors(err); !ok || fe["guest_id"] == "" {
		t.Fatalf("expected guest_id gate error, got %v", err)
	}
	if got.Step != domain.StepGuestAndDetails {
		t.Fatalf("step = %d, want 3", got.Step)
	}
}

func TestBack_NeverMutatesDraft(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")
	toConfirmation(t, svc, snap.SessionID)

	before, _ := svc.Snapshot(snap.SessionID)
	for step := domain.StepConfirmation; step > domain.StepDatesAndGuests; step-- {
		got, err := svc.Back(snap.SessionID)
		if err != nil {
			t.Fatalf("back: %v", err)
		}
		if got.Step != step-1 {
			t.Fatalf("step = %d, want %d", got.Step, step-1)
		}
		if got.Draft != before.Draft {
			t.Fatalf("back mutated the draft: %+v vs %+v", got.Draft, before.Draft)
		}
		if got.SelectedRoom == nil {
			t.Fatal("back cleared the room selection")
		}
	}
	// back on step 1 is a no-op
	got, _ := svc.Back(snap.SessionID)
	if got.Step != domain.StepDatesAndGuests {
		t.Fatalf("step = %d, want 1", got.Step)
	}
}

func TestDateChangeKeepsSelectionButReprices(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")
	toConfirmation(t, svc, snap.SessionID)

	// back to step 1 and widen the stay to 5 nights
	for i := 0; i < 3; i++ {
		_, _ = svc.Back(snap.SessionID)
	}
	got := setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-06")
	if got.SelectedRoom == nil || got.Draft.RoomID != room101.ID {
		t.Fatal("date change must not clear the room selection")
	}
	if got.Pricing.Nights != 5 || got.Pricing.Subtotal != 500 {
		t.Fatalf("pricing did not follow the new dates: %+v", got.Pricing)
	}
}

func TestSubmit_SuccessDiscardsSession(t *testing.T) {
	pms := defaultPMS()
	svc, sessions := newWizard(t, pms)
	snap, _ := svc.Start(context.Background(), "hotel-1")
	toConfirmation(t, svc, snap.SessionID)

	record, err := svc.Submit(context.Background(), snap.SessionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.ID != "bk-1" {
		t.Fatalf("record = %+v", record)
	}
	if pms.createCalls != 1 {
		t.Fatalf("createBooking calls = %d, want exactly 1", pms.createCalls)
	}
	if len(pms.idemKeys) != 1 || pms.idemKeys[0] == "" {
		t.Fatalf("missing idempotency key: %v", pms.idemKeys)
	}
	if err := sessions.View(snap.SessionID, func(*domain.WizardSession) {}); err == nil {
		t.Fatal("session must be discarded after a successful submit")
	}
}

func TestSubmit_FailureKeepsDraftAndSurfacesMessage(t *testing.T) {
	pms := defaultPMS()
	pms.createErr = &upstreamErr{msg: "Room no longer available"}
	svc, _ := newWizard(t, pms)
	snap, _ := svc.Start(context.Background(), "hotel-1")
	toConfirmation(t, svc, snap.SessionID)

	before, _ := svc.Snapshot(snap.SessionID)
	_, err := svc.Submit(context.Background(), snap.SessionID)
	var ce *app.CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}
	if ce.Message != "Room no longer available" {
		t.Fatalf("upstream message not surfaced verbatim: %q", ce.Message)
	}

	after, _ := svc.Snapshot(snap.SessionID)
	if after.Step != domain.StepConfirmation || after.Draft != before.Draft || after.Submitting {
		t.Fatalf("failed submit must keep the wizard on step 4 with the draft intact: %+v", after)
	}

	// resubmission uses a fresh idempotency token
	pms.createErr = nil
	if _, err := svc.Submit(context.Background(), snap.SessionID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if len(pms.idemKeys) != 2 || pms.idemKeys[0] == pms.idemKeys[1] {
		t.Fatalf("each attempt needs its own idempotency key: %v", pms.idemKeys)
	}
}

func TestSubmit_BusyGateBlocksDoubleClick(t *testing.T) {
	pms := defaultPMS()
	svc, _ := newWizard(t, pms)
	snap, _ := svc.Start(context.Background(), "hotel-1")
	toConfirmation(t, svc, snap.SessionID)

	var second error
	pms.onCreate = func() {
		// a duplicate click lands while the first call is in flight
		_, second = svc.Submit(context.Background(), snap.SessionID)
	}
	if _, err := svc.Submit(context.Background(), snap.SessionID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !errors.Is(second, app.ErrBusy) {
		t.Fatalf("duplicate submit = %v, want ErrBusy", second)
	}
	if pms.createCalls != 1 {
		t.Fatalf("createBooking calls = %d, want 1", pms.createCalls)
	}
}

func TestSubmit_StaleResultDropped(t *testing.T) {
	pms := defaultPMS()
	svc, sessions := newWizard(t, pms)
	snap, _ := svc.Start(context.Background(), "hotel-1")
	toConfirmation(t, svc, snap.SessionID)

	pms.onCreate = func() {
		// the user edits the discount while the submit is in flight
		d := 25.0
		if _, err := svc.UpdateDraft(snap.SessionID, domain.DraftUpdate{DiscountAmount: &d}); err != nil {
			t.Errorf("update during submit: %v", err)
		}
	}
	_, err := svc.Submit(context.Background(), snap.SessionID)
	if !errors.Is(err, app.ErrStaleResult) {
		t.Fatalf("err = %v, want ErrStaleResult", err)
	}
	if err := sessions.View(snap.SessionID, func(*domain.WizardSession) {}); err != nil {
		t.Fatal("a discarded result must not tear down the session")
	}
}

func TestSubmit_NotOnConfirmationStep(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")

	_, err := svc.Submit(context.Background(), snap.SessionID)
	if _, ok := domain.AsFieldErrors(err); !ok {
		t.Fatalf("expected field errors, got %v", err)
	}
}

func TestUpdateDraft_RejectsInvalidFieldsAtomically(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")

	neg := -5.0
	two := 2
	got, err := svc.UpdateDraft(snap.SessionID, domain.DraftUpdate{
		OccupantCount:  &two,
		DiscountAmount: &neg,
	})
	if fe, ok := domain.AsFieldErrors(err); !ok || fe["discount_amount"] == "" {
		t.Fatalf("expected discount_amount error, got %v", err)
	}
	if got.Draft.OccupantCount != 1 {
		t.Fatal("a partially invalid update must apply nothing")
	}

	bad := domain.BookingSource("carrier_pigeon")
	if _, err := svc.UpdateDraft(snap.SessionID, domain.DraftUpdate{BookingSource: &bad}); err == nil {
		t.Fatal("unknown booking source must be rejected")
	}
}

func TestSelectGuest_UnknownGuestRejected(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")

	if _, err := svc.SelectGuest(snap.SessionID, "guest-999"); err == nil {
		t.Fatal("unknown guest must be rejected")
	}
	got, err := svc.SelectGuest(snap.SessionID, ana.ID)
	if err != nil {
		t.Fatalf("select guest: %v", err)
	}
	if got.SelectedGuest == nil || got.SelectedGuest.ID != ana.ID {
		t.Fatalf("guest register not set: %+v", got)
	}
}

// Snapshots taken while another handler is mutating the session must
// come out whole: the run is exercised under the race detector, and
// each snapshot's occupant count has to agree with its own pricing.
func TestSnapshot_ConsistentUnderConcurrentUpdates(t *testing.T) {
	svc, _ := newWizard(t, defaultPMS())
	snap, _ := svc.Start(context.Background(), "hotel-1")
	setDates(t, svc, snap.SessionID, "2024-01-01", "2024-01-04")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 300; i++ {
			d := float64(i % 50)
			if _, err := svc.UpdateDraft(snap.SessionID, domain.DraftUpdate{DiscountAmount: &d}); err != nil {
				t.Errorf("update: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 300; i++ {
		got, err := svc.Snapshot(snap.SessionID)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if got.Pricing.DiscountAmount != got.Draft.DiscountAmount {
			t.Fatalf("torn snapshot: pricing discount %v, draft discount %v",
				got.Pricing.DiscountAmount, got.Draft.DiscountAmount)
		}
	}
	wg.Wait()
}

// upstreamErr mimics a typed PMS rejection carrying its own wording.
type upstreamErr struct{ msg string }

func (e *upstreamErr) Error() string           { return e.msg }
func (e *upstreamErr) UpstreamMessage() string { return e.msg }
