package mock

import "braingemma/internal/types"

// cannedReports are the three reports the mock generator picks from.
var cannedReports = []types.DiagnoseResponse{
	{
		Diagnosis:      "High-Grade Glioma",
		TumorType:      "Glioblastoma Multiforme (GBM)",
		Grade:          "Grade IV — WHO Classification",
		Confidence:     94,
		Location:       "Left Frontal Lobe",
		ModalitiesUsed: []string{"CT", "MRI"},
		Triage:         string(types.TriageUrgent),
		Findings: "MRI demonstrates an irregular, heterogeneously enhancing mass in the left frontal lobe measuring " +
			"approximately 4.2 × 3.8 cm with surrounding vasogenic edema. CT confirms hyperdense lesion with central " +
			"necrosis. Mass effect with midline shift of ~3mm noted.",
		Recommendations: []string{
			"Urgent referral to neuro-oncology for multidisciplinary evaluation.",
			"Stereotactic biopsy or maximal safe surgical resection to confirm histopathology.",
			"Consider concurrent chemoradiotherapy (Stupp protocol: TMZ + RT) post-surgery.",
			"MRS and perfusion MRI recommended for metabolic characterization.",
			"Genetic profiling (IDH, MGMT methylation) critical for treatment stratification.",
		},
		Differential: []types.DifferentialItem{
			{Label: "Glioblastoma (GBM)", Probability: 94},
			{Label: "Metastatic Lesion", Probability: 4},
			{Label: "Anaplastic Astrocytoma", Probability: 2},
		},
		InferenceMS: 847,
	},
	{
		Diagnosis:      "Meningioma",
		TumorType:      "Typical Meningioma",
		Grade:          "Grade I — WHO Classification",
		Confidence:     89,
		Location:       "Right Parietal Convexity",
		ModalitiesUsed: []string{"MRI"},
		Triage:         string(types.TriageSoon),
		Findings: "MRI shows a well-circumscribed, homogeneously enhancing extra-axial mass along the right parietal " +
			"convexity with a broad dural base, measuring 2.9 × 2.4 cm. No surrounding edema. \"Dural tail\" sign " +
			"present. CT confirms calcium deposits within the mass.",
		Recommendations: []string{
			"Neurosurgical consultation for assessment of resectability (Simpson grade).",
			"If asymptomatic and small, watchful waiting with serial MRI every 6 months is acceptable.",
			"Surgical excision recommended if causing neurological symptoms or rapid growth.",
			"Stereotactic radiosurgery (Gamma Knife) as alternative for inaccessible lesions.",
			"Annual follow-up imaging post-resection to monitor for recurrence.",
		},
		Differential: []types.DifferentialItem{
			{Label: "Meningioma (Grade I)", Probability: 89},
			{Label: "Hemangiopericytoma", Probability: 7},
			{Label: "Dural Metastasis", Probability: 4},
		},
		InferenceMS: 612,
	},
	{
		Diagnosis:      types.NoTumorDiagnosis,
		TumorType:      "—",
		Grade:          "N/A",
		Confidence:     97,
		Location:       "N/A",
		ModalitiesUsed: []string{"CT", "MRI"},
		Triage:         string(types.TriageRoutine),
		Findings: "No intracranial mass lesion, abnormal enhancement, or midline shift identified on CT or MRI. White " +
			"matter signal within normal limits for patient age. No restricted diffusion. Ventricles normal in size " +
			"and configuration.",
		Recommendations: []string{
			"Clinical correlation with presenting symptoms is advised.",
			"If headaches or neurological symptoms persist, consider EEG or lumbar puncture.",
			"Routine follow-up imaging in 12 months if clinically indicated.",
			"Consult neurology for assessment of non-imaging causes.",
			"Review imaging with a specialist radiologist if doubts persist.",
		},
		Differential: []types.DifferentialItem{
			{Label: "Normal Study", Probability: 97},
			{Label: "Very Small Lesion (<5mm)", Probability: 2},
			{Label: "Artifact / Motion", Probability: 1},
		},
		InferenceMS: 523,
	},
}

// Reports returns copies of the canned reports.
func Reports() []*types.DiagnoseResponse {
	out := make([]*types.DiagnoseResponse, len(cannedReports))
	for i := range cannedReports {
		out[i] = cannedReports[i].Clone()
	}
	return out
}
