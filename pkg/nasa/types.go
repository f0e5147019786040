package nasa

// APOD is NASA's Astronomy Picture of the Day
type APOD struct {
	Date           string `json:"date"`
	Title          string `json:"title"`
	Explanation    string `json:"explanation"`
	URL            string `json:"url"`
	HDURL          string `json:"hdurl,omitempty"`
	MediaType      string `json:"media_type"`
	ServiceVersion string `json:"service_version,omitempty"`
	Copyright      string `json:"copyright,omitempty"`
}

// MarsCamera identifies the rover camera that took a photo
type MarsCamera struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	RoverID  int    `json:"rover_id"`
	FullName string `json:"full_name"`
}

// MarsRover describes the rover that took a photo
type MarsRover struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	LandingDate string `json:"landing_date"`
	LaunchDate  string `json:"launch_date"`
	Status      string `json:"status"`
}

// MarsPhoto is a single rover photo
type MarsPhoto struct {
	ID        int        `json:"id"`
	Sol       int        `json:"sol"`
	Camera    MarsCamera `json:"camera"`
	ImgSrc    string     `json:"img_src"`
	EarthDate string     `json:"earth_date"`
	Rover     MarsRover  `json:"rover"`
}

// MarsPhotoPage is one page of rover photos
type MarsPhotoPage struct {
	Photos     []MarsPhoto `json:"photos"`
	Camera     string      `json:"camera,omitempty"`
	Sol        int         `json:"sol"`
	Page       int         `json:"page"`
	PerPage    int         `json:"perPage"`
	TotalPages int         `json:"totalPages"`
	Total      int         `json:"total"`
}

// EarthImage locates a Landsat image for a point and date
type EarthImage struct {
	URL  string  `json:"url"`
	Date string  `json:"date"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Coordinates is a latitude/longitude pair
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EPICImage is a natural-color image from the DSCOVR EPIC camera
type EPICImage struct {
	Identifier string      `json:"identifier"`
	Caption    string      `json:"caption"`
	Image      string      `json:"image"`
	Date       string      `json:"date"`
	ImageURL   string      `json:"imageUrl"`
	Centroid   Coordinates `json:"centroid"`
}

type marsPhotosResponse struct {
	Photos []MarsPhoto `json:"photos"`
}

type epicRecord struct {
	Identifier string      `json:"identifier"`
	Caption    string      `json:"caption"`
	Image      string      `json:"image"`
	Date       string      `json:"date"`
	Centroid   Coordinates `json:"centroid_coordinates"`
}
