package models

import (
	"time"

	"github.com/google/uuid"
)

type PlatformKind string

const (
	PlatformYouTube  PlatformKind = "youtube"
	PlatformTwitch   PlatformKind = "twitch"
	PlatformFacebook PlatformKind = "facebook"
	PlatformCustom   PlatformKind = "custom"
)

// Platform is a configured RTMP publishing destination.
type Platform struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Kind      PlatformKind `json:"kind"`
	RTMPURL   string       `json:"rtmp_url"`
	StreamKey string       `json:"stream_key"`
	CreatedAt time.Time    `json:"created_at"`
}

// PublishURL is the full RTMP endpoint the transcoder publishes to.
func (p Platform) PublishURL() string {
	return p.RTMPURL + "/" + p.StreamKey
}
