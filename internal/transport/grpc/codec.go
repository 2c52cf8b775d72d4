package grpc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"barberbook/internal/domain"
	"barberbook/internal/service/booking"
)

// Request fields are read leniently: a missing key reads as its zero
// value and the service decides whether that is acceptable. Fields of the
// wrong kind are rejected here.

func stringField(req *structpb.Struct, key string) (string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	}
	return "", fieldError(key, "a string")
}

func optionalString(req *structpb.Struct, key string) (*string, error) {
	if _, ok := req.GetFields()[key]; !ok {
		return nil, nil
	}
	s, err := stringField(req, key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func boolField(req *structpb.Struct, key string) (bool, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return false, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	case *structpb.Value_NullValue:
		return false, nil
	}
	return false, fieldError(key, "a boolean")
}

func optionalBool(req *structpb.Struct, key string) (*bool, error) {
	if _, ok := req.GetFields()[key]; !ok {
		return nil, nil
	}
	b, err := boolField(req, key)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func optionalInt(req *structpb.Struct, key string) (*int, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return nil, fieldError(key, "an integer")
	}
	i := int(n.NumberValue)
	return &i, nil
}

func optionalStringList(req *structpb.Struct, key string) (*[]string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fieldError(key, "a list of strings")
	}
	out := make([]string, 0, len(list.ListValue.GetValues()))
	for _, item := range list.ListValue.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fieldError(key, "a list of strings")
		}
		out = append(out, s.StringValue)
	}
	return &out, nil
}

func optionalIntList(req *structpb.Struct, key string) (*[]int, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fieldError(key, "a list of integers")
	}
	out := make([]int, 0, len(list.ListValue.GetValues()))
	for _, item := range list.ListValue.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
			return nil, fieldError(key, "a list of integers")
		}
		out = append(out, int(n.NumberValue))
	}
	return &out, nil
}

func appointmentIDField(req *structpb.Struct) (uuid.UUID, error) {
	raw, err := stringField(req, "appointment_id")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, statusError(codes.InvalidArgument, ReasonValidation, "appointment_id must be a UUID")
	}
	return id, nil
}

func fieldError(key, want string) error {
	return statusError(codes.InvalidArgument, ReasonValidation, fmt.Sprintf("%s must be %s", key, want))
}

func reply(body map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(body)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func appointmentValue(a domain.Appointment) map[string]any {
	out := map[string]any{
		"id":                a.ID.String(),
		"client_name":       a.ClientName,
		"date":              a.Date.String(),
		"time":              a.Time.String(),
		"status":            string(a.Status),
		"has_notifications": a.NotificationTarget != "",
		"created_at":        a.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":        a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.SuggestionTime != nil {
		out["suggestion_time"] = a.SuggestionTime.String()
	}
	return out
}

func appointmentList(appts []domain.Appointment) []any {
	out := make([]any, 0, len(appts))
	for _, a := range appts {
		out = append(out, appointmentValue(a))
	}
	return out
}

func shopConfigValue(cfg domain.ShopConfig) map[string]any {
	workDays := make([]any, 0, len(cfg.WorkDays))
	for _, wd := range cfg.WorkDays {
		workDays = append(workDays, int(wd))
	}
	blocked := make([]any, 0, len(cfg.BlockedDates))
	for _, d := range cfg.BlockedDates {
		blocked = append(blocked, d.String())
	}
	released := make([]any, 0, len(cfg.ReleasedClients))
	for _, name := range cfg.ReleasedClients {
		released = append(released, name)
	}

	out := map[string]any{
		"is_open":          cfg.IsOpen,
		"open_time":        cfg.OpenTime.String(),
		"close_time":       cfg.CloseTime.String(),
		"interval_minutes": cfg.IntervalMinutes,
		"work_days":        workDays,
		"blocked_dates":    blocked,
		"released_clients": released,
		"version":          cfg.Version,
	}
	if cfg.LunchStart != nil && cfg.LunchEnd != nil {
		out["lunch_start"] = cfg.LunchStart.String()
		out["lunch_end"] = cfg.LunchEnd.String()
	}
	return out
}

func eligibilityValue(e booking.Eligibility) map[string]any {
	out := map[string]any{
		"can_book":        e.CanBook(),
		"shop_open":       e.ShopOpen,
		"cooldown_active": e.Cooldown.Active,
	}
	if e.Cooldown.Active {
		out["cooldown_ends_on"] = e.Cooldown.EndsOn.String()
		out["days_since_last_visit"] = e.Cooldown.ElapsedDays
	}
	if e.ActiveAppointment != nil {
		out["active_appointment"] = appointmentValue(*e.ActiveAppointment)
	}
	return out
}

func shopConfigPatch(req *structpb.Struct) (booking.ShopConfigPatch, error) {
	var (
		p   booking.ShopConfigPatch
		err error
	)
	if p.IsOpen, err = optionalBool(req, "is_open"); err != nil {
		return p, err
	}
	if p.OpenTime, err = optionalString(req, "open_time"); err != nil {
		return p, err
	}
	if p.CloseTime, err = optionalString(req, "close_time"); err != nil {
		return p, err
	}
	if p.IntervalMinutes, err = optionalInt(req, "interval_minutes"); err != nil {
		return p, err
	}
	if p.LunchStart, err = optionalString(req, "lunch_start"); err != nil {
		return p, err
	}
	if p.LunchEnd, err = optionalString(req, "lunch_end"); err != nil {
		return p, err
	}
	if p.ClearLunch, err = boolField(req, "clear_lunch"); err != nil {
		return p, err
	}
	if p.WorkDays, err = optionalIntList(req, "work_days"); err != nil {
		return p, err
	}
	if p.BlockedDates, err = optionalStringList(req, "blocked_dates"); err != nil {
		return p, err
	}
	return p, nil
}
