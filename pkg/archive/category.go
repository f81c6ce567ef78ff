package archive

import (
	"path/filepath"
	"strings"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
)

// Category is a kind of archive resource.
type Category int

const (
	StructuralUnproc Category = iota + 1
	T1wUnproc
	T2wUnproc
	FunctionalUnproc
	DiffusionUnproc
	ASLUnproc
	StructuralPreproc
	Supplemental
	HandEdit
	StructuralPreprocHandEdit
	FunctionalPreproc
	DiffusionPreproc
	MultiRunIcaFix
	MsmAll
	Registration
	FixProcessed
	DeDrift
	Stats
	PostFix
	Task
	Bedpostx
	ReApplyFix
	RunningStatus
)

type categoryDef struct {
	name    string
	pattern string

	// scoped categories are per-scan and honour the extra filter.
	scoped bool

	// unprocessed categories hold raw scans.
	unprocessed bool

	accept func(base string) bool
}

var categories = map[Category]categoryDef{
	StructuralUnproc:          {name: "structural-unproc", pattern: "T[12]w_*unproc", unprocessed: true},
	T1wUnproc:                 {name: "t1w-unproc", pattern: "T1w_*unproc", unprocessed: true},
	T2wUnproc:                 {name: "t2w-unproc", pattern: "T2w_*unproc", unprocessed: true},
	FunctionalUnproc:          {name: "functional-unproc", pattern: "*fMRI*unproc", scoped: true, unprocessed: true},
	DiffusionUnproc:           {name: "diffusion-unproc", pattern: "Diffusion_unproc", unprocessed: true},
	ASLUnproc:                 {name: "asl-unproc", pattern: "mbPCASLhr_unproc", unprocessed: true},
	StructuralPreproc:         {name: "structural-preproc", pattern: "Structural_preproc"},
	Supplemental:              {name: "supplemental", pattern: filepath.Join("Structural_preproc", "supplemental")},
	HandEdit:                  {name: "hand-edit", pattern: "Structural_Hand_Edit"},
	StructuralPreprocHandEdit: {name: "structural-preproc-handedit", pattern: "Structural_preproc_handedit"},
	FunctionalPreproc:         {name: "functional-preproc", pattern: "*fMRI*preproc", scoped: true},
	DiffusionPreproc:          {name: "diffusion-preproc", pattern: "Diffusion_preproc"},
	MultiRunIcaFix:            {name: "multirun-icafix", pattern: "MultiRunIcaFix_proc"},
	MsmAll:                    {name: "msmall", pattern: "MsmAll_proc"},
	Registration:              {name: "registration", pattern: "MSMAllReg"},
	FixProcessed:              {name: "fix", pattern: "*FIX", scoped: true},
	DeDrift:                   {name: "dedrift", pattern: "MSMAllDeDrift"},
	Stats:                     {name: "stats", pattern: "*RSS", scoped: true},
	PostFix:                   {name: "postfix", pattern: "*PostFix", scoped: true},
	Task: {
		name: "task", pattern: "tfMRI*", scoped: true,
		// tfMRI_<TASK> only. tfMRI_<TASK>_<PE>_preproc and alike are other categories.
		accept: func(base string) bool { return strings.Count(base, "_") <= 1 },
	},
	Bedpostx:      {name: "bedpostx", pattern: "Diffusion_bedpostx"},
	ReApplyFix:    {name: "reapplyfix", pattern: "*ReApplyFix*", scoped: true},
	RunningStatus: {name: "running-status", pattern: "RunningStatus"},
}

func (c Category) String() string {
	if d, ok := categories[c]; ok {
		return d.name
	}
	return "unknown-category"
}

// Pattern is the glob pattern of the category, relative to a resource root.
func (c Category) Pattern() string {
	return categories[c].pattern
}

// Scoped tells whether the category is per-scan, and so honours the extra filter.
func (c Category) Scoped() bool {
	return categories[c].scoped
}

// Unprocessed tells whether the category holds raw, unprocessed scans.
func (c Category) Unprocessed() bool {
	return categories[c].unprocessed
}

// Categories returns every category in declaration order.
func Categories() []Category {
	cats := make([]Category, 0, len(categories))
	for c := StructuralUnproc; c <= RunningStatus; c++ {
		cats = append(cats, c)
	}
	return cats
}

func ParseCategory(name string) (Category, error) {
	for c, d := range categories {
		if strings.EqualFold(d.name, name) {
			return c, nil
		}
	}
	return 0, xe.Configuration("unknown resource category: %q", name)
}

func (c *Category) UnmarshalText(b []byte) error {
	cat, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = cat
	return nil
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
