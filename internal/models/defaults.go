package models

// Baseline facility states. The seed generator scales these per facility.

// DefaultHospitalState returns a mid-sized general hospital.
func DefaultHospitalState() *HospitalState {
	return &HospitalState{
		Beds: map[string]*BedCount{
			BedGeneral:   {Total: 120, Used: 78},
			BedICU:       {Total: 20, Used: 12},
			BedIsolation: {Total: 16, Used: 3},
			BedPediatric: {Total: 24, Used: 11},
			BedMaternity: {Total: 20, Used: 9},
		},
		Equipment: map[string]*EquipmentCount{
			EquipmentVentilators:     {Total: 25, Available: 12, InUse: 11, Maintenance: 2},
			EquipmentOxygenCylinders: {Total: 150, Available: 90, InUse: 55, Maintenance: 5},
			EquipmentXRayMachines:    {Total: 4, Available: 3, InUse: 1},
			EquipmentCTScanners:      {Total: 2, Available: 1, InUse: 1},
			EquipmentAmbulances:      {Total: 8, Available: 5, InUse: 3},
		},
		Staff: map[string]*StaffCount{
			"doctors": {Total: 45, OnDuty: 20, Available: 6},
			"nurses":  {Total: 130, OnDuty: 60, Available: 14},
		},
		Flow: PatientFlow{InflowPerHour: 8, ERWaitMinutes: 35},
		Preparedness: map[Disease]*Preparedness{
			DiseaseDengue:    {},
			DiseaseMalaria:   {},
			DiseaseTyphoid:   {},
			DiseaseInfluenza: {Prepared: true, WardReady: true, StaffAlerted: true},
			DiseaseCovid:     {Prepared: true, WardReady: true, StaffAlerted: true},
		},
	}
}

// DefaultLabState returns a lab with the reference daily test counts.
func DefaultLabState() *LabState {
	return &LabState{
		Tests: map[Disease]*DiseaseTests{
			DiseaseDengue:    {Today: 12, Positive: 2, Capacity: 60, History: []int{10, 11, 12}},
			DiseaseMalaria:   {Today: 8, Positive: 1, Capacity: 50, History: []int{7, 8, 8}},
			DiseaseTyphoid:   {Today: 5, Positive: 0, Capacity: 40, History: []int{4, 5, 5}},
			DiseaseInfluenza: {Today: 15, Positive: 3, Capacity: 60, History: []int{12, 14, 15}},
			DiseaseCovid:     {Today: 20, Positive: 1, Capacity: 80, History: []int{18, 19, 20}},
		},
	}
}

// DefaultPharmacyState returns a pharmacy stocked with the reference
// medicines, all ordered from supplierID.
func DefaultPharmacyState(supplierID string) *PharmacyState {
	return &PharmacyState{
		Medicines: map[string]*Medicine{
			MedicineDengue:      {Stock: 500, DailyUsage: 30, ReorderPoint: 100, Criticality: CriticalityHigh, SupplierID: supplierID},
			MedicineChloroquine: {Stock: 300, DailyUsage: 20, ReorderPoint: 80, Criticality: CriticalityHigh, SupplierID: supplierID},
			MedicineParacetamol: {Stock: 1000, DailyUsage: 150, ReorderPoint: 300, Criticality: CriticalityMedium, SupplierID: supplierID},
			MedicineOseltamivir: {Stock: 200, DailyUsage: 15, ReorderPoint: 50, Criticality: CriticalityHigh, SupplierID: supplierID},
			MedicineCeftriaxone: {Stock: 250, DailyUsage: 25, ReorderPoint: 70, Criticality: CriticalityHigh, SupplierID: supplierID},
		},
	}
}

// DefaultSupplierState returns a distributor serving the given zones.
func DefaultSupplierState(zones ...Zone) *SupplierState {
	return &SupplierState{
		Inventory: map[string]*StockItem{
			MedicineDengue:           {Stock: 5000},
			MedicineChloroquine:      {Stock: 3000},
			MedicineParacetamol:      {Stock: 20000},
			MedicineOseltamivir:      {Stock: 2000},
			MedicineCeftriaxone:      {Stock: 2500},
			EquipmentVentilators:     {Stock: 40},
			EquipmentOxygenCylinders: {Stock: 600},
		},
		Fleet:        Fleet{Vehicles: 6, Available: 6, AvgDeliveryHours: 2},
		ServiceZones: append([]Zone(nil), zones...),
	}
}

// DefaultCityState returns an empty coordinator state.
func DefaultCityState() *CityState {
	return &CityState{
		RiskZones:      make(map[Zone]*ZoneRisk),
		OutbreakCounts: make(map[Disease]int),
		Overall:        RiskLow,
	}
}
