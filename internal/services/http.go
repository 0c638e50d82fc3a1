package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dpup/geonav/server/internal/lib/export"
	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/guidance"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

// API paths
const (
	PathStart     = "/api/v1/navigation/start"
	PathPosition  = "/api/v1/navigation/position"
	PathProfile   = "/api/v1/navigation/profile"
	PathStop      = "/api/v1/navigation/stop"
	PathCurrent   = "/api/v1/navigation/current"
	PathEstimates = "/api/v1/navigation/estimates"
	PathRouteKML  = "/api/v1/navigation/route.kml"
)

const maxRequestBytes = 1 << 16

// NavigationHandler exposes a NavigationService over JSON HTTP
type NavigationHandler struct {
	service *NavigationService
}

// NewNavigationHandler creates HTTP handlers for service
func NewNavigationHandler(service *NavigationService) *NavigationHandler {
	return &NavigationHandler{service: service}
}

// HandlerFuncs returns the handlers keyed by path
func (h *NavigationHandler) HandlerFuncs() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		PathStart:     endpoint(http.MethodPost, h.handleStart),
		PathPosition:  endpoint(http.MethodPost, h.handlePosition),
		PathProfile:   endpoint(http.MethodPost, h.handleProfile),
		PathStop:      endpoint(http.MethodPost, h.handleStop),
		PathCurrent:   endpoint(http.MethodGet, h.handleCurrent),
		PathEstimates: endpoint(http.MethodGet, h.handleEstimates),
		PathRouteKML:  endpoint(http.MethodGet, h.handleRouteKML),
		PathStream:    endpoint(http.MethodGet, h.handleStream),
	}
}

type pointBody struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (p *pointBody) point(field string) (geo.Point, error) {
	if p == nil || p.Lat == nil || p.Lng == nil {
		return geo.Point{}, status.Errorf(codes.InvalidArgument, "%s requires lat and lng", field)
	}
	pt, err := geo.NewPoint(*p.Lat, *p.Lng)
	if err != nil {
		return geo.Point{}, status.Errorf(codes.InvalidArgument, "%s: %v", field, err)
	}
	return pt, nil
}

type startRequest struct {
	Origin      *pointBody `json:"origin"`
	Destination *pointBody `json:"destination"`
	Profile     string     `json:"profile"`
}

type positionRequest struct {
	pointBody
	Heading            float64 `json:"heading"`
	HorizontalAccuracy float64 `json:"horizontal_accuracy"`
	HeadingAccuracy    float64 `json:"heading_accuracy"`
}

func (p positionRequest) pose(pt geo.Point) navigation.Pose {
	return navigation.Pose{
		Point:              pt,
		Heading:            p.Heading,
		HorizontalAccuracy: p.HorizontalAccuracy,
		HeadingAccuracy:    p.HeadingAccuracy,
	}
}

type profileRequest struct {
	Profile string `json:"profile"`
}

func (h *NavigationHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	origin, err := req.Origin.point("origin")
	if err != nil {
		writeError(w, r, err)
		return
	}
	destination, err := req.Destination.point("destination")
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile := h.service.Profile()
	if req.Profile != "" {
		if profile, err = parseProfile(req.Profile); err != nil {
			writeError(w, r, err)
			return
		}
	}

	snap, err := h.service.StartNavigationWithProfile(r.Context(), origin, destination, profile)
	if err != nil && !snap.Active {
		writeError(w, r, err)
		return
	}

	fields := h.snapshotResponse(snap)
	if err != nil {
		// Navigation continues on the straight-line fallback
		fields["directions_error"] = errorFields(err)
	}
	writeStruct(w, r, http.StatusOK, fields)
}

func (h *NavigationHandler) handlePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	pt, err := req.point("position")
	if err != nil {
		writeError(w, r, err)
		return
	}

	update := h.service.ReportPosition(r.Context(), req.pose(pt))
	writeStruct(w, r, http.StatusOK, positionFields(update))
}

func (h *NavigationHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := parseProfile(req.Profile)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := h.service.SetProfile(r.Context(), profile)
	if err != nil && !snap.Active {
		writeError(w, r, err)
		return
	}

	fields := h.snapshotResponse(snap)
	if err != nil {
		fields["directions_error"] = errorFields(err)
	}
	writeStruct(w, r, http.StatusOK, fields)
}

func (h *NavigationHandler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.service.Stop(r.Context())
	writeStruct(w, r, http.StatusOK, map[string]interface{}{"active": false})
}

func (h *NavigationHandler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	writeStruct(w, r, http.StatusOK, h.snapshotResponse(h.service.Current()))
}

func (h *NavigationHandler) snapshotResponse(snap navigation.Snapshot) map[string]interface{} {
	fields := map[string]interface{}{"snapshot": snapshotFields(snap)}
	if id := h.service.SessionID(); id != "" && snap.Active {
		fields["session_id"] = id
	}
	return fields
}

func (h *NavigationHandler) handleEstimates(w http.ResponseWriter, r *http.Request) {
	origin, err := parseLatLng(r.URL.Query().Get("origin"), "origin")
	if err != nil {
		writeError(w, r, err)
		return
	}
	destination, err := parseLatLng(r.URL.Query().Get("destination"), "destination")
	if err != nil {
		writeError(w, r, err)
		return
	}

	estimates := h.service.EstimateTravelTimes(origin, destination)
	list := make([]interface{}, 0, len(estimates))
	for _, p := range routing.AllProfiles() {
		seconds := estimates[p].Seconds()
		list = append(list, map[string]interface{}{
			"profile": p.String(),
			"seconds": seconds,
			"text":    navigation.FormatMinutes(seconds),
		})
	}

	writeStruct(w, r, http.StatusOK, map[string]interface{}{
		"distance_meters": geo.DistanceMeters(origin, destination),
		"estimates":       list,
	})
}

func (h *NavigationHandler) handleRouteKML(w http.ResponseWriter, r *http.Request) {
	route, ok := h.service.Route()
	if !ok {
		writeError(w, r, ErrNotNavigating)
		return
	}
	snap := h.service.Current()

	var buf bytes.Buffer
	if err := export.Write(&buf, route, &snap); err != nil {
		writeError(w, r, status.Errorf(codes.Internal, "failed to render KML: %v", err))
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="route.kml"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Errorw(r.Context(), "Failed to write KML response", "error", err)
	}
}

// endpoint rejects requests that do not use the given HTTP method. Requests
// served outside prefab get a development logger.
func endpoint(m string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(logging.EnsureLogger(r.Context()))
		if r.Method != m {
			w.Header().Set("Allow", m)
			writeStruct(w, r, http.StatusMethodNotAllowed, map[string]interface{}{
				"error": fmt.Sprintf("method %s not allowed", r.Method),
				"code":  codes.Unimplemented.String(),
			})
			return
		}
		fn(w, r)
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request body: %v", err)
	}
	return nil
}

func parseProfile(s string) (routing.TravelProfile, error) {
	p, err := routing.ParseTravelProfile(s)
	if err != nil {
		return p, status.Error(codes.InvalidArgument, err.Error())
	}
	return p, nil
}

// parseLatLng parses "lat,lng"
func parseLatLng(s, field string) (geo.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Point{}, status.Errorf(codes.InvalidArgument, "%s must be lat,lng", field)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geo.Point{}, status.Errorf(codes.InvalidArgument, "%s must be lat,lng", field)
	}
	pt, err := geo.NewPoint(lat, lng)
	if err != nil {
		return geo.Point{}, status.Errorf(codes.InvalidArgument, "%s: %v", field, err)
	}
	return pt, nil
}

// snapshotFields renders a snapshot for JSON. Display text has markup removed;
// "instruction" keeps the directions text verbatim.
func snapshotFields(s navigation.Snapshot) map[string]interface{} {
	fields := map[string]interface{}{
		"active":                      s.Active,
		"profile":                     s.Profile.String(),
		"position":                    pointFields(s.Position),
		"current_step_index":          s.CurrentStepIndex,
		"step_count":                  s.StepCount,
		"step_changed":                s.StepChanged,
		"is_final_step":               s.IsFinalStep,
		"arrived":                     s.Arrived,
		"fallback":                    s.Fallback,
		"remaining_distance_meters":   s.RemainingDistanceMeters,
		"remaining_time_seconds":      finite(s.RemainingTimeSeconds),
		"remaining_time_text":         navigation.FormatMinutes(s.RemainingTimeSeconds),
		"eta":                         nil,
		"eta_epoch_ms":                s.ETAEpochMillis(),
		"instruction":                 s.Instruction,
		"instruction_text":            guidance.StripMarkup(s.Instruction),
		"current_instruction":         guidance.StripMarkup(s.CurrentInstruction),
		"current_street":              guidance.StripMarkup(s.CurrentStreet),
		"next_instruction":            guidance.StripMarkup(s.NextInstruction),
		"distance_to_step_end_meters": finite(s.DistanceToStepEndMeters),
		"off_route":                   s.OffRoute,
		"distance_from_route_meters":  finite(s.DistanceFromRouteMeters),
		"cue":                         s.Cue,
		"current_step_geometry":       pointList(s.CurrentStepGeometry),
		"completed_geometry":          pointList(s.CompletedGeometry),
		"remaining_geometry":          pointList(s.RemainingGeometry),
	}

	if !s.ETA.IsZero() {
		fields["eta"] = s.ETA.UTC().Format(time.RFC3339)
		fields["eta_text"] = navigation.FormatMiles(float64(s.RemainingDistanceMeters), s.ETA, "")
	}
	return fields
}

func positionFields(update PositionUpdate) map[string]interface{} {
	fields := map[string]interface{}{
		"snapshot": snapshotFields(update.Snapshot),
		"tracking": update.Tracking,
	}
	if update.Indicator != nil {
		fields["destination"] = indicatorFields(*update.Indicator)
	}
	return fields
}

func indicatorFields(ind navigation.Indicator) map[string]interface{} {
	return map[string]interface{}{
		"distance_meters": finite(ind.DistanceMeters),
		"distance_text":   ind.DistanceText,
		"bearing":         finite(ind.Bearing),
		"relative_angle":  finite(ind.RelativeAngle),
		"arrow":           ind.Symbol,
		"direction":       ind.Arrow.String(),
		"proximity":       string(ind.Proximity),
	}
}

func pointFields(p geo.Point) map[string]interface{} {
	return map[string]interface{}{"lat": p.Latitude, "lng": p.Longitude}
}

func pointList(points []geo.Point) []interface{} {
	list := make([]interface{}, len(points))
	for i, p := range points {
		list[i] = pointFields(p)
	}
	return list
}

// finite maps NaN and infinities to JSON null
func finite(f float64) interface{} {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return f
}

func errorFields(err error) map[string]interface{} {
	st, _ := status.FromError(err)
	return map[string]interface{}{
		"code":    st.Code().String(),
		"message": st.Message(),
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := status.Code(err)
	httpStatus := runtime.HTTPStatusFromCode(code)
	if httpStatus >= http.StatusInternalServerError {
		logging.Errorw(r.Context(), "Navigation request failed", "path", r.URL.Path, "error", err)
	}

	writeStruct(w, r, httpStatus, errorBody(err))
}

func errorBody(err error) map[string]interface{} {
	fields := errorFields(err)
	fields["error"] = fields["message"]
	delete(fields, "message")
	return fields
}

// marshalFields renders fields as JSON through structpb
func marshalFields(fields map[string]interface{}) ([]byte, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{UseProtoNames: true}.Marshal(st)
}

func writeStruct(w http.ResponseWriter, r *http.Request, httpStatus int, fields map[string]interface{}) {
	body, err := marshalFields(fields)
	if err != nil {
		logging.Errorw(r.Context(), "Failed to marshal response", "error", err)
		http.Error(w, `{"error":"internal error","code":"Internal"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if _, err := w.Write(body); err != nil {
		logging.Errorw(r.Context(), "Failed to write response", "error", err)
	}
}
