package grpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"barberbook/internal/domain"
	"barberbook/internal/service/booking"
)

type bookingService interface {
	AvailableSlots(ctx context.Context, date string) (booking.AvailableSlots, error)
	Eligibility(ctx context.Context, clientName string) (booking.Eligibility, error)
	CreateBooking(ctx context.Context, in booking.CreateBookingInput) (domain.Appointment, error)
	ClientAppointments(ctx context.Context, clientName string) ([]domain.Appointment, error)
	Cancel(ctx context.Context, in booking.ClientAction) (domain.Appointment, error)
	Reschedule(ctx context.Context, actor domain.Actor, in booking.RescheduleInput) (domain.Appointment, error)
	AcceptSuggestion(ctx context.Context, in booking.ClientAction) (domain.Appointment, error)
	DeclineSuggestion(ctx context.Context, in booking.ClientAction) (domain.Appointment, error)
	ProposeSlot(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error)

	OperatorAppointments(ctx context.Context, view booking.View) ([]domain.Appointment, error)
	NextAppointment(ctx context.Context) (domain.Appointment, bool, error)
	Stats(ctx context.Context) (booking.Stats, error)
	Accept(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Reject(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Suggest(ctx context.Context, in booking.SuggestInput) (domain.Appointment, error)
	ManualBook(ctx context.Context, in booking.ManualBookInput) (domain.Appointment, error)
	ReleaseClient(ctx context.Context, name string) (domain.ShopConfig, error)
	UnreleaseClient(ctx context.Context, name string) (domain.ShopConfig, error)
	ToggleShop(ctx context.Context) (domain.ShopConfig, error)
	GetShopConfig(ctx context.Context) (domain.ShopConfig, error)
	UpdateShopConfig(ctx context.Context, patch booking.ShopConfigPatch) (domain.ShopConfig, error)
}

type operatorLogin interface {
	Login(password string) (string, time.Time, error)
}

type BookingServer struct {
	svc   bookingService
	login operatorLogin
	log   *slog.Logger
}

var _ BookingServiceServer = (*BookingServer)(nil)

func NewBookingServer(svc bookingService, login operatorLogin, log *slog.Logger) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingServer{
		svc:   svc,
		login: login,
		log:   log.With(slog.String("component", "grpc.booking")),
	}
}

func (s *BookingServer) rpc(name string) *slog.Logger {
	return s.log.With(slog.String("rpc", name))
}

func (s *BookingServer) AvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("AvailableSlots")

	date, err := stringField(req, "date")
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	slots, err := s.svc.AvailableSlots(ctx, date)
	if err != nil {
		return nil, toStatus(ctx, log, err, slog.String("date", date))
	}

	times := make([]any, 0, len(slots.Times))
	for _, t := range slots.Times {
		times = append(times, t.String())
	}
	log.Debug("slots listed", slog.String("date", slots.Date.String()), slog.Int("count", len(times)))
	return reply(map[string]any{
		"date":      slots.Date.String(),
		"shop_open": slots.ShopOpen,
		"times":     times,
	})
}

func (s *BookingServer) Eligibility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("Eligibility")

	name, err := stringField(req, "client_name")
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	e, err := s.svc.Eligibility(ctx, name)
	if err != nil {
		return nil, toStatus(ctx, log, err, slog.String("client_name", name))
	}
	return reply(eligibilityValue(e))
}

func (s *BookingServer) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("CreateBooking")

	var in booking.CreateBookingInput
	if err := readStrings(req, map[string]*string{
		"client_name":         &in.ClientName,
		"date":                &in.Date,
		"time":                &in.Time,
		"notification_target": &in.NotificationTarget,
	}); err != nil {
		return nil, toStatus(ctx, log, err)
	}

	appt, err := s.svc.CreateBooking(ctx, in)
	if err != nil {
		return nil, toStatus(ctx, log, err,
			slog.String("client_name", in.ClientName),
			slog.String("date", in.Date),
			slog.String("time", in.Time),
		)
	}
	logAppointment(ctx, log, "appointment booked", appt)
	return reply(map[string]any{"appointment": appointmentValue(appt)})
}

func (s *BookingServer) ListMyAppointments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("ListMyAppointments")

	name, err := stringField(req, "client_name")
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	appts, err := s.svc.ClientAppointments(ctx, name)
	if err != nil {
		return nil, toStatus(ctx, log, err, slog.String("client_name", name))
	}
	log.Debug("client appointments listed", slog.String("client_name", name), slog.Int("count", len(appts)))
	return reply(map[string]any{"appointments": appointmentList(appts)})
}

func (s *BookingServer) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.clientAction(ctx, "CancelAppointment", req, s.svc.Cancel)
}

func (s *BookingServer) AcceptSuggestion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.clientAction(ctx, "AcceptSuggestion", req, s.svc.AcceptSuggestion)
}

func (s *BookingServer) DeclineSuggestion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.clientAction(ctx, "DeclineSuggestion", req, s.svc.DeclineSuggestion)
}

func (s *BookingServer) RescheduleAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.move(ctx, "RescheduleAppointment", req, true, func(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error) {
		return s.svc.Reschedule(ctx, domain.ActorClient, in)
	})
}

func (s *BookingServer) ProposeSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.move(ctx, "ProposeSlot", req, true, s.svc.ProposeSlot)
}

func (s *BookingServer) OperatorReschedule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.move(ctx, "OperatorReschedule", req, false, func(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error) {
		return s.svc.Reschedule(ctx, domain.ActorOperator, in)
	})
}

func (s *BookingServer) clientAction(ctx context.Context, rpc string, req *structpb.Struct, call func(context.Context, booking.ClientAction) (domain.Appointment, error)) (*structpb.Struct, error) {
	log := s.rpc(rpc)

	id, err := appointmentIDField(req)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	name, err := stringField(req, "client_name")
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}

	appt, err := call(ctx, booking.ClientAction{AppointmentID: id, ClientName: name})
	if err != nil {
		return nil, toStatus(ctx, log, err, slog.String("appointment_id", id.String()))
	}
	logAppointment(ctx, log, "appointment updated", appt)
	return reply(map[string]any{"appointment": appointmentValue(appt)})
}

func (s *BookingServer) move(ctx context.Context, rpc string, req *structpb.Struct, byClient bool, call func(context.Context, booking.RescheduleInput) (domain.Appointment, error)) (*structpb.Struct, error) {
	log := s.rpc(rpc)

	id, err := appointmentIDField(req)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	in := booking.RescheduleInput{AppointmentID: id}
	fields := map[string]*string{"date": &in.Date, "time": &in.Time}
	if byClient {
		fields["client_name"] = &in.ClientName
	}
	if err := readStrings(req, fields); err != nil {
		return nil, toStatus(ctx, log, err)
	}

	appt, err := call(ctx, in)
	if err != nil {
		return nil, toStatus(ctx, log, err,
			slog.String("appointment_id", id.String()),
			slog.String("date", in.Date),
			slog.String("time", in.Time),
		)
	}
	logAppointment(ctx, log, "appointment moved", appt)
	return reply(map[string]any{"appointment": appointmentValue(appt)})
}

func (s *BookingServer) ListAppointments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("ListAppointments")

	raw, err := stringField(req, "view")
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	view, err := booking.ParseView(raw)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	appts, err := s.svc.OperatorAppointments(ctx, view)
	if err != nil {
		return nil, toStatus(ctx, log, err, slog.String("view", string(view)))
	}
	log.Debug("appointments listed", slog.String("view", string(view)), slog.Int("count", len(appts)))
	return reply(map[string]any{"view": string(view), "appointments": appointmentList(appts)})
}

func (s *BookingServer) NextAppointment(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("NextAppointment")

	appt, ok, err := s.svc.NextAppointment(ctx)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	if !ok {
		return reply(map[string]any{"found": false})
	}
	return reply(map[string]any{"found": true, "appointment": appointmentValue(appt)})
}

func (s *BookingServer) Stats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("Stats")

	st, err := s.svc.Stats(ctx)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	return reply(map[string]any{"pending": st.Pending, "today": st.Today})
}

func (s *BookingServer) AcceptAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.operatorAction(ctx, "AcceptAppointment", req, s.svc.Accept)
}

func (s *BookingServer) RejectAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.operatorAction(ctx, "RejectAppointment", req, s.svc.Reject)
}

func (s *BookingServer) CompleteAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.operatorAction(ctx, "CompleteAppointment", req, s.svc.Complete)
}

func (s *BookingServer) operatorAction(ctx context.Context, rpc string, req *structpb.Struct, call func(context.Context, uuid.UUID) (domain.Appointment, error)) (*structpb.Struct, error) {
	log := s.rpc(rpc)

	id, err := appointmentIDField(req)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	appt, err := call(ctx, id)
	if err != nil {
		return nil, toStatus(ctx, log, err, slog.String("appointment_id", id.String()))
	}
	logAppointment(ctx, log, "appointment updated", appt)
	return reply(map[string]any{"appointment": appointmentValue(appt)})
}

func (s *BookingServer) SuggestTime(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("SuggestTime")

	id, err := appointmentIDField(req)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	in := booking.SuggestInput{AppointmentID: id}
	if err := readStrings(req, map[string]*string{"date": &in.Date, "time": &in.Time}); err != nil {
		return nil, toStatus(ctx, log, err)
	}

	appt, err := s.svc.Suggest(ctx, in)
	if err != nil {
		return nil, toStatus(ctx, log, err, slog.String("appointment_id", id.String()), slog.String("time", in.Time))
	}
	logAppointment(ctx, log, "time suggested", appt)
	return reply(map[string]any{"appointment": appointmentValue(appt)})
}

func (s *BookingServer) ManualBook(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("ManualBook")

	var in booking.ManualBookInput
	if err := readStrings(req, map[string]*string{
		"client_name":         &in.ClientName,
		"date":                &in.Date,
		"time":                &in.Time,
		"notification_target": &in.NotificationTarget,
	}); err != nil {
		return nil, toStatus(ctx, log, err)
	}
	pending, err := boolField(req, "pending")
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	in.Pending = pending

	appt, err := s.svc.ManualBook(ctx, in)
	if err != nil {
		return nil, toStatus(ctx, log, err,
			slog.String("client_name", in.ClientName),
			slog.String("date", in.Date),
			slog.String("time", in.Time),
		)
	}
	logAppointment(ctx, log, "appointment booked by operator", appt)
	return reply(map[string]any{"appointment": appointmentValue(appt)})
}

func (s *BookingServer) ReleaseClient(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.releaseList(ctx, "ReleaseClient", req, s.svc.ReleaseClient)
}

func (s *BookingServer) UnreleaseClient(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.releaseList(ctx, "UnreleaseClient", req, s.svc.UnreleaseClient)
}

func (s *BookingServer) releaseList(ctx context.Context, rpc string, req *structpb.Struct, call func(context.Context, string) (domain.ShopConfig, error)) (*structpb.Struct, error) {
	log := s.rpc(rpc)

	name, err := stringField(req, "client_name")
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	cfg, err := call(ctx, name)
	if err != nil {
		return nil, toStatus(ctx, log, err, slog.String("client_name", name))
	}
	log.Info("release list changed", slog.String("client_name", name), slog.Int("released", len(cfg.ReleasedClients)))
	return reply(map[string]any{"shop_config": shopConfigValue(cfg)})
}

func (s *BookingServer) ToggleShop(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("ToggleShop")

	cfg, err := s.svc.ToggleShop(ctx)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	log.Info("shop toggled", slog.Bool("is_open", cfg.IsOpen))
	return reply(map[string]any{"shop_config": shopConfigValue(cfg)})
}

func (s *BookingServer) GetShopConfig(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("GetShopConfig")

	cfg, err := s.svc.GetShopConfig(ctx)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	return reply(map[string]any{"shop_config": shopConfigValue(cfg)})
}

func (s *BookingServer) UpdateShopConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("UpdateShopConfig")

	patch, err := shopConfigPatch(req)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	cfg, err := s.svc.UpdateShopConfig(ctx, patch)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	log.Info("shop config updated", slog.Int64("version", cfg.Version))
	return reply(map[string]any{"shop_config": shopConfigValue(cfg)})
}

func (s *BookingServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.rpc("Login")

	password, err := stringField(req, "password")
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	token, expiresAt, err := s.login.Login(password)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}
	log.Info("operator logged in", slog.Time("expires_at", expiresAt))
	return reply(map[string]any{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

func readStrings(req *structpb.Struct, fields map[string]*string) error {
	for key, dst := range fields {
		v, err := stringField(req, key)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

func logAppointment(ctx context.Context, log *slog.Logger, msg string, a domain.Appointment) {
	log.InfoContext(ctx, msg,
		slog.String("appointment_id", a.ID.String()),
		slog.String("status", string(a.Status)),
		slog.String("slot", a.Slot().String()),
	)
}
