package dto

import (
	"github.com/google/uuid"
)

type StartStreamRequest struct {
	VideoID      uuid.UUID   `json:"video_id" binding:"required"`
	PlatformIDs  []uuid.UUID `json:"platform_ids" binding:"required,min=1"`
	LoopConfigID *uuid.UUID  `json:"loop_config_id,omitempty"`
}

type StopStreamRequest struct {
	VideoID    uuid.UUID `json:"video_id" binding:"required"`
	PlatformID uuid.UUID `json:"platform_id" binding:"required"`
}

type CreatePlatformRequest struct {
	Name      string `json:"name" binding:"required"`
	Kind      string `json:"kind" binding:"required,oneof=youtube twitch facebook custom"`
	RTMPURL   string `json:"rtmp_url" binding:"required"`
	StreamKey string `json:"stream_key" binding:"required"`
}

type UpdatePlatformRequest struct {
	Name      string `json:"name" binding:"required"`
	Kind      string `json:"kind" binding:"required,oneof=youtube twitch facebook custom"`
	RTMPURL   string `json:"rtmp_url" binding:"required"`
	StreamKey string `json:"stream_key" binding:"required"`
}

type ImportMediaRequest struct {
	URL  string `json:"url" binding:"required"`
	Name string `json:"name,omitempty"`
}

type CreateLoopConfigRequest struct {
	Name          string      `json:"name" binding:"required"`
	Type          string      `json:"type" binding:"required,oneof=infinite duration count"`
	VideoIDs      []uuid.UUID `json:"video_ids,omitempty"`
	DurationHours int         `json:"duration_hours,omitempty"`
	RepeatCount   int         `json:"repeat_count,omitempty"`
}

type CreateScheduleRequest struct {
	VideoID      uuid.UUID   `json:"video_id" binding:"required"`
	PlatformIDs  []uuid.UUID `json:"platform_ids" binding:"required,min=1"`
	Days         []int       `json:"days" binding:"required,min=1"`
	TimeOfDay    string      `json:"time_of_day" binding:"required"`
	Active       *bool       `json:"active,omitempty"`
	LoopConfigID *uuid.UUID  `json:"loop_config_id,omitempty"`
}

type UpdateScheduleRequest struct {
	PlatformIDs  []uuid.UUID `json:"platform_ids" binding:"required,min=1"`
	Days         []int       `json:"days" binding:"required,min=1"`
	TimeOfDay    string      `json:"time_of_day" binding:"required"`
	Active       bool        `json:"active"`
	LoopConfigID *uuid.UUID  `json:"loop_config_id,omitempty"`
}
