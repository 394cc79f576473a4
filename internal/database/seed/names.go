package seed

// Name parts for generated facilities.

var hospitalNames = []string{
	"St. Mary's", "Riverside", "Northgate", "Mercy", "Lakeview",
	"City Central", "Hillcrest", "Good Samaritan", "Eastbrook", "Harborview",
	"Westfield", "Sacred Heart", "Meadowlands", "Kingsway", "Oakridge",
}

var hospitalKinds = []string{
	"General Hospital", "Medical Center", "Hospital", "Memorial Hospital", "Community Hospital",
}

var labNames = []string{
	"Apex", "Precision", "Metro", "Unity", "Pioneer",
	"Summit", "Beacon", "Cornerstone", "Clearpath", "Sentinel",
}

var labKinds = []string{
	"Diagnostics", "Pathology Lab", "Clinical Laboratory", "Diagnostic Center",
}

var pharmacyStreets = []string{
	"Main Street", "Market Square", "Station Road", "Park Avenue", "Church Lane",
	"Bridge Street", "Mill Road", "Victoria Road", "High Street", "Garden Row",
	"Canal Street", "Elm Avenue",
}

var pharmacyKinds = []string{
	"Pharmacy", "Chemists", "Drug Store", "Apothecary",
}

var supplierNames = []string{
	"MedLine", "CarePoint", "Vital", "HealthBridge", "Meridian", "Northstar",
}

var supplierKinds = []string{
	"Medical Supply", "Distribution", "Pharma Logistics", "Healthcare Supplies",
}
