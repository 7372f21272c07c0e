package models

type Service struct {
	ServiceID string `json:"service_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
}

type Room struct {
	RoomID     string   `json:"room_id"`
	Name       string   `json:"name"`
	ServiceIDs []string `json:"service_ids,omitempty"`
}

type Desk struct {
	DeskID string `json:"desk_id"`
	Name   string `json:"name"`
}
