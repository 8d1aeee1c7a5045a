package models

type Stop struct {
	ID     int64
	Name   string
	Alerts []Alert
}
