package vrp

// Response statuses. Success means every servable item was routed, partial
// means at least one route exists alongside unassigned items, and error means
// no route could be produced at all.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Response is the optimize-schedule result payload.
type Response struct {
	Status            string  `json:"status"`
	Message           string  `json:"message"`
	Routes            []Route `json:"routes"`
	UnassignedItemIDs []string `json:"unassignedItemIds"`
}

// Route is one vehicle's ordered day plan.
type Route struct {
	TechnicianID           string `json:"technicianId"`
	Stops                  []Stop `json:"stops"`
	TotalTravelTimeSeconds int64  `json:"totalTravelTimeSeconds"`
	TotalDurationSeconds   int64  `json:"totalDurationSeconds"`
}

// Stop reports one visit. ArrivalTimeISO is the naive arrival (departure from
// the previous stop plus raw travel), StartTimeISO the service start after
// waiting for breaks and time constraints, EndTimeISO start plus duration.
type Stop struct {
	ItemID         string `json:"itemId"`
	ArrivalTimeISO string `json:"arrivalTimeISO"`
	StartTimeISO   string `json:"startTimeISO"`
	EndTimeISO     string `json:"endTimeISO"`
}

// HasAssignments reports whether any route carries at least one stop.
func (r *Response) HasAssignments() bool {
	for _, route := range r.Routes {
		if len(route.Stops) > 0 {
			return true
		}
	}
	return false
}

// errorResponse marks every item unassigned with the given message.
func errorResponse(message string, req *Request) *Response {
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ID)
	}
	return &Response{
		Status:            StatusError,
		Message:           message,
		Routes:            []Route{},
		UnassignedItemIDs: ids,
	}
}
