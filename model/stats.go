package model

// Stats 管理后台概览
type Stats struct {
	MusicTotal    int64 `json:"musicTotal"`
	MusicPending  int64 `json:"musicPending"`
	MusicApproved int64 `json:"musicApproved"`
	MusicRejected int64 `json:"musicRejected"`
	Downloads     int64 `json:"downloads"`
	Users         int64 `json:"users"`
	Banners       int64 `json:"banners"`
	Announcements int64 `json:"announcements"`
	ActivePopups  int64 `json:"activePopups"`
}
