package export

const (
	KeyName        = "name"
	KeyOBJECTID    = "OBJECTID"
	DefaultName    = "Feature"
	KMLCoordFormat = "%.10f,%.10f,0"
	GPXPointFormat = `<trkpt lat="%.10f" lon="%.10f"></trkpt>`
	KMLSpace       = " "
	EPSGWGS84      = 4326
)

// nameKeys are tried in order when labelling a feature.
var nameKeys = []string{"name", "Name", "NAME", "title", "Title", "TITLE", KeyOBJECTID, "FID"}
