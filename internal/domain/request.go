package domain

import "time"

// ServiceType enumerates the closed set of request categories.
type ServiceType string

const (
	ServiceTypeMachineRepair ServiceType = "MACHINE_REPAIR"
	ServiceTypeWorker        ServiceType = "WORKER"
	ServiceTypeTransport     ServiceType = "TRANSPORT"
)

// RequestStatus enumerates lifecycle states for service requests.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusInReview   RequestStatus = "IN_REVIEW"
	RequestStatusScheduled  RequestStatus = "SCHEDULED"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusCancelled  RequestStatus = "CANCELLED"
)

// RequestPriority enumerates SLA urgency.
type RequestPriority string

const (
	RequestPriorityLow    RequestPriority = "LOW"
	RequestPriorityNormal RequestPriority = "NORMAL"
	RequestPriorityHigh   RequestPriority = "HIGH"
	RequestPriorityUrgent RequestPriority = "URGENT"
)

// ContactInfo carries who to reach for the request.
type ContactInfo struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// LocationInfo describes where the service takes place.
type LocationInfo struct {
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Notes    string `json:"notes,omitempty"`
	OnSite   bool   `json:"on_site,omitempty"`
	PlusCode string `json:"plus_code,omitempty"`
}

// ScheduleInfo describes when the service is wanted.
type ScheduleInfo struct {
	PreferredDate string `json:"preferred_date,omitempty"`
	TimeWindow    string `json:"time_window,omitempty"`
	Flexible      bool   `json:"flexible,omitempty"`
}

// BudgetInfo describes what the requester expects to pay.
type BudgetInfo struct {
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Note     string  `json:"note,omitempty"`
}

// MachineRepairDetails is the MACHINE_REPAIR detail block.
type MachineRepairDetails struct {
	MachineType   string `json:"machine_type,omitempty"`
	Manufacturer  string `json:"manufacturer,omitempty"`
	Model         string `json:"model,omitempty"`
	SerialNumber  string `json:"serial_number,omitempty"`
	FaultSummary  string `json:"fault_summary,omitempty"`
	UnderWarranty bool   `json:"under_warranty,omitempty"`
}

// WorkerDetails is the WORKER detail block.
type WorkerDetails struct {
	Trade          string `json:"trade,omitempty"`
	HeadCount      int    `json:"head_count,omitempty"`
	ShiftPattern   string `json:"shift_pattern,omitempty"`
	DurationDays   int    `json:"duration_days,omitempty"`
	Qualifications string `json:"qualifications,omitempty"`
}

// TransportDetails is the TRANSPORT detail block.
type TransportDetails struct {
	CargoType     string  `json:"cargo_type,omitempty"`
	WeightKg      float64 `json:"weight_kg,omitempty"`
	PickupAddress string  `json:"pickup_address,omitempty"`
	DropoffAddr   string  `json:"dropoff_address,omitempty"`
	VehicleClass  string  `json:"vehicle_class,omitempty"`
}

// ServiceRequest is the aggregate root for the workflow engine. The three
// history slices are owned by the aggregate and are only ever appended to.
type ServiceRequest struct {
	ID            string
	ServiceType   ServiceType
	Status        RequestStatus
	Priority      RequestPriority
	CreatedBy     string
	CreatedByRole ActorRole
	CompanyID     *string
	AssignedTo    *string
	LastUpdatedBy string

	Title       string
	Description string
	Contact     ContactInfo
	Location    LocationInfo
	Schedule    ScheduleInfo
	Budget      BudgetInfo

	MachineRepair *MachineRepairDetails
	Worker        *WorkerDetails
	Transport     *TransportDetails

	Notes    string
	Metadata map[string]any

	SLADueAt        *time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
	LastActionAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	StatusHistory     []StatusChange
	AssignmentHistory []AssignmentChange
	InternalNotes     []InternalNote
}

// IsValidServiceType reports whether the value is in the closed enum.
func IsValidServiceType(t ServiceType) bool {
	switch t {
	case ServiceTypeMachineRepair, ServiceTypeWorker, ServiceTypeTransport:
		return true
	}
	return false
}

// IsValidStatus reports whether the value is in the closed enum.
func IsValidStatus(s RequestStatus) bool {
	switch s {
	case RequestStatusPending, RequestStatusInReview, RequestStatusScheduled,
		RequestStatusInProgress, RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}

// IsValidPriority reports whether the value is in the closed enum.
func IsValidPriority(p RequestPriority) bool {
	switch p {
	case RequestPriorityLow, RequestPriorityNormal, RequestPriorityHigh, RequestPriorityUrgent:
		return true
	}
	return false
}

// IsTerminalStatus reports whether the status has no outgoing transitions.
func IsTerminalStatus(s RequestStatus) bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}
