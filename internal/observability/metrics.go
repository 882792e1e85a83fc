package observability

const (
	MUsecaseRequests     MetricKey = "usecase_requests_total"
	MUsecaseDuration     MetricKey = "usecase_duration_seconds"
	MHTTPRequests        MetricKey = "http_requests_total"
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"
	MStockReservations   MetricKey = "stock_reservations_total"
	MOrdersPlaced        MetricKey = "orders_placed_total"
	MEventsPublished     MetricKey = "events_published_total"
)
