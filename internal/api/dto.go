package api

import (
	"errors"
	"math"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fractal/internal/editor"
	"github.com/starford/fractal/internal/library"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/timeline"
)

// AssetListResponse wraps paginated asset listings.
type AssetListResponse struct {
	Assets []models.Asset `json:"assets" validate:"required"`
	Total  int            `json:"total" example:"42" validate:"required"`
}

// AssetResponse is returned by the import endpoints. Created is false when
// the content or source was already registered.
type AssetResponse struct {
	Asset   models.Asset `json:"asset" validate:"required"`
	Created bool         `json:"created"`
}

// RemoteAssetRequest registers an asset by URL.
type RemoteAssetRequest = library.RemoteAsset

// PlaceRequest is the request body for placing an asset.
type PlaceRequest struct {
	AssetID string `json:"asset_id" example:"3f0c9a52-..." validate:"required"`
}

// Validate implements validation.Validatable.
func (r PlaceRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AssetID, validation.Required),
	)
}

// PlaceResponse reports the outcome of a placement. Placing on a locked
// track, or one of the wrong kind, is not an error: Placed is false.
type PlaceResponse struct {
	Placed bool         `json:"placed"`
	Clip   *models.Clip `json:"clip,omitempty"`
}

// CreateTrackRequest is the request body for adding a track.
type CreateTrackRequest struct {
	Kind models.Kind `json:"kind" example:"AUDIO" validate:"required"`
	Name string      `json:"name,omitempty" example:"AUD_CHANNEL_B"`
}

// Validate implements validation.Validatable.
func (r CreateTrackRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In(models.KindVideo, models.KindAudio, models.KindImage)),
		validation.Field(&r.Name, validation.Length(0, 64)),
	)
}

// UpdateTrackRequest is the request body for PATCH /tracks/{id}.
type UpdateTrackRequest timeline.TrackPatch

// Validate implements validation.Validatable.
func (r UpdateTrackRequest) Validate() error {
	if timeline.TrackPatch(r).Empty() {
		return errors.New("one of name, locked or muted is required")
	}
	if r.Name != nil {
		n := strings.TrimSpace(*r.Name)
		return validation.Validate(n, validation.Required.Error("name cannot be blank"), validation.Length(1, 64))
	}
	return nil
}

// SeekRequest moves the playhead either to a time in seconds or to a pixel
// position on the rendered timeline.
type SeekRequest struct {
	Time     *float64 `json:"time,omitempty" example:"12.5"`
	Position *float64 `json:"position,omitempty" example:"250"`
	PPS      float64  `json:"pps,omitempty" example:"20"`
}

// Validate implements validation.Validatable.
func (r SeekRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Time,
			validation.When(r.Position == nil, validation.NotNil.Error("time or position is required")),
			validation.When(r.Position != nil, validation.Nil.Error("pass either time or position")),
			validation.By(finitePtr)),
		validation.Field(&r.Position, validation.By(finitePtr)),
		validation.Field(&r.PPS, validation.Min(0.0), validation.By(finite)),
	)
}

// SkipRequest moves the playhead relative to its position, either by Delta
// seconds or by the configured skip interval in Direction.
type SkipRequest struct {
	Delta     *float64 `json:"delta,omitempty" example:"-5"`
	Direction string   `json:"direction,omitempty" example:"forward"`
}

// Validate implements validation.Validatable.
func (r SkipRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Delta,
			validation.When(r.Direction == "", validation.NotNil.Error("delta or direction is required")),
			validation.By(finitePtr)),
		validation.Field(&r.Direction, validation.In("forward", "backward")),
	)
}

// TimelineResponse is the timeline snapshot plus the formatted timecode.
type TimelineResponse struct {
	timeline.Snapshot
	Timecode string `json:"timecode" example:"00:12.500"`
}

// TransportStatus is the transport response body.
type TransportStatus = editor.Status

func finite(v any) error {
	f, _ := v.(float64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return errors.New("must be a finite number")
	}
	return nil
}

func finitePtr(v any) error {
	p, _ := v.(*float64)
	if p == nil {
		return nil
	}
	return finite(*p)
}
