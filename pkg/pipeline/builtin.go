package pipeline

import "github.com/humanconnectome/hcp-pipelines/pkg/archive"

const (
	StructuralPreprocessing         = "StructuralPreprocessing"
	StructuralPreprocessingHandEdit = "StructuralPreprocessingHandEdit"
	FunctionalPreprocessing         = "FunctionalPreprocessing"
	DiffusionPreprocessing          = "DiffusionPreprocessing"
	MultiRunIcaFixProcessing        = "MultiRunIcaFixProcessing"
	MsmAllProcessing                = "MsmAllProcessing"
	DeDriftAndResample              = "DeDriftAndResample"
	ReApplyFix                      = "ReApplyFix"
	BedpostxProcessing              = "BedpostxProcessing"
)

func all(cats ...archive.Category) []Source {
	s := make([]Source, 0, len(cats))
	for _, c := range cats {
		s = append(s, Source{Category: c})
	}
	return s
}

func scan(c archive.Category) Source {
	return Source{Category: c, PerScan: true}
}

// Builtin returns a registry of the standard pipelines.
func Builtin() *Registry {
	structural := all(archive.StructuralUnproc, archive.StructuralPreproc, archive.Supplemental)

	return NewRegistry(
		Definition{
			Name:          StructuralPreprocessing,
			Output:        "Structural_preproc",
			Prerequisites: []archive.Category{archive.StructuralUnproc},
			Sources:       all(archive.StructuralUnproc),
		},
		Definition{
			Name:          StructuralPreprocessingHandEdit,
			Output:        "Structural_preproc_handedit",
			Prerequisites: []archive.Category{archive.StructuralPreproc, archive.HandEdit},
			Sources:       append(structural, all(archive.HandEdit)...),
		},
		Definition{
			Name:          FunctionalPreprocessing,
			Output:        "{scan}_preproc",
			Prerequisites: []archive.Category{archive.StructuralPreproc, archive.FunctionalUnproc},
			Sources: []Source{
				{Category: archive.StructuralUnproc},
				scan(archive.FunctionalUnproc),
				{Category: archive.StructuralPreproc},
				{Category: archive.Supplemental},
			},
			PerScan: true,
		},
		Definition{
			Name:          DiffusionPreprocessing,
			Output:        "Diffusion_preproc",
			Prerequisites: []archive.Category{archive.StructuralPreproc, archive.DiffusionUnproc},
			Sources: all(
				archive.StructuralUnproc, archive.DiffusionUnproc,
				archive.StructuralPreproc, archive.Supplemental,
			),
		},
		Definition{
			Name:          MultiRunIcaFixProcessing,
			Output:        "MultiRunIcaFix_proc",
			Prerequisites: []archive.Category{archive.StructuralPreproc, archive.FunctionalPreproc},
			Sources: all(
				archive.StructuralUnproc, archive.FunctionalUnproc,
				archive.StructuralPreproc, archive.Supplemental, archive.FunctionalPreproc,
			),
		},
		Definition{
			Name:          MsmAllProcessing,
			Output:        "MsmAll_proc",
			Prerequisites: []archive.Category{archive.MultiRunIcaFix},
			Sources: all(
				archive.StructuralPreproc, archive.Supplemental,
				archive.FunctionalPreproc, archive.MultiRunIcaFix,
			),
		},
		Definition{
			Name:          DeDriftAndResample,
			Output:        "MSMAllDeDrift",
			Prerequisites: []archive.Category{archive.MsmAll, archive.MultiRunIcaFix},
			Sources: all(
				archive.StructuralPreproc, archive.Supplemental, archive.FunctionalPreproc,
				archive.FixProcessed, archive.MultiRunIcaFix, archive.Registration, archive.MsmAll,
			),
			ProjectSources: []ProjectSource{{Category: archive.DeDrift}},
			ForceCopy: []string{
				"**/T1w/Native/*.native.wb.spec",
				"**/MNINonLinear/Native/*.native.wb.spec",
			},
			Prune: []string{
				"**/*.ica/Atlas.dtseries.nii",
				"**/*.ica/Atlas.nii.gz",
				"**/*.ica/filtered_func_data.nii.gz",
				"**/*.ica/mc/**",
				"**/*.ica/Atlas_hp_preclean.dtseries.nii",
			},
		},
		Definition{
			Name:          ReApplyFix,
			Output:        "{scan}_ReApplyFix",
			Prerequisites: []archive.Category{archive.FunctionalPreproc, archive.DeDrift},
			Sources: []Source{
				{Category: archive.StructuralPreproc},
				{Category: archive.Supplemental},
				scan(archive.FunctionalPreproc),
				scan(archive.FixProcessed),
				{Category: archive.DeDrift},
			},
			ForceCopy: []string{"**/*.ica/**"},
			PerScan:   true,
		},
		Definition{
			Name:          BedpostxProcessing,
			Output:        "Diffusion_bedpostx",
			Prerequisites: []archive.Category{archive.DiffusionPreproc},
			Sources:       all(archive.StructuralPreproc, archive.DiffusionPreproc),
		},
	)
}
