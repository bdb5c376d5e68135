package vast

// Offer is a rentable machine listing returned by the marketplace search.
type Offer struct {
	ID          int64   `json:"id"`
	MachineID   int64   `json:"machine_id"`
	GPUName     string  `json:"gpu_name"`
	NumGPUs     int     `json:"num_gpus"`
	DPHTotal    float64 `json:"dph_total"`
	DPH         float64 `json:"dph"`
	InetDown    float64 `json:"inet_down"`
	InetUp      float64 `json:"inet_up"`
	Reliability float64 `json:"reliability"`
	CPUCores    float64 `json:"cpu_cores"`
	// CPUCoresEffective is populated on some listings instead of CPUCores.
	CPUCoresEffective float64 `json:"cpu_cores_effective"`
	CPURAM            float64 `json:"cpu_ram"` // MB
	DiskSpace         float64 `json:"disk_space"`
	Geolocation       string  `json:"geolocation"`
	Verified          bool    `json:"verified"`
	Rentable          bool    `json:"rentable"`
}

// Cores returns the effective CPU core count for an offer.
func (o Offer) Cores() float64 {
	if o.CPUCores > 0 {
		return o.CPUCores
	}
	return o.CPUCoresEffective
}

// Price returns the hourly price, falling back to the base rate when the
// total rate is absent from the listing.
func (o Offer) Price() float64 {
	if o.DPHTotal > 0 {
		return o.DPHTotal
	}
	return o.DPH
}

// Instance is the remote view of a rented machine.
type Instance struct {
	ID              int64   `json:"id"`
	MachineID       int64   `json:"machine_id"`
	ActualStatus    string  `json:"actual_status"`
	IntendedStatus  string  `json:"intended_status"`
	StatusMsg       string  `json:"status_msg"`
	Label           string  `json:"label"`
	Image           string  `json:"image_uuid"`
	GPUName         string  `json:"gpu_name"`
	NumGPUs         int     `json:"num_gpus"`
	DPHTotal        float64 `json:"dph_total"`
	InetDown        float64 `json:"inet_down"`
	SSHHost         string  `json:"ssh_host"`
	SSHPort         int     `json:"ssh_port"`
	PublicIPAddr    string  `json:"public_ipaddr"`
	DirectPortStart int     `json:"direct_port_start"`
	Geolocation     string  `json:"geolocation"`
	StartDate       float64 `json:"start_date"` // unix seconds
}

// SSHInfo is a resolved SSH endpoint for an instance.
type SSHInfo struct {
	Host string
	Port int
}

// CreateResult is the response from accepting an offer.
type CreateResult struct {
	Success     bool  `json:"success"`
	NewContract int64 `json:"new_contract"`
}
