package dto

type StatusResponse struct {
	Status string `json:"status"`
}

type StatsResponse struct {
	Users    int64 `json:"users"`
	Receipts int64 `json:"receipts"`
}
