package registry

// DriftKind describes in which direction the two tables disagree
type DriftKind int

const (
	// MissingTests means a package has no entry in the test table
	MissingTests DriftKind = iota
	// UnknownTestPackage means the test table names a package that isn't registered
	UnknownTestPackage
	// DuplicateTestPackage means the test table lists the same package more than once
	DuplicateTestPackage
)

func (k DriftKind) String() string {
	switch k {
	case MissingTests:
		return "missing from test packages"
	case UnknownTestPackage:
		return "not a registered package"
	case DuplicateTestPackage:
		return "listed twice in test packages"
	}

	return "unknown"
}

// Drift is a single disagreement between the package table and the test table
type Drift struct {
	Name string
	Kind DriftKind
}

// Audit compares the package table with the test table.
func Audit() []Drift {
	return audit(Packages(), TestPackages())
}

func audit(packages []Package, testPackages []string) []Drift {
	result := make([]Drift, 0)
	known := make(map[string]bool, len(packages))
	for _, pkg := range packages {
		known[pkg.Name] = true
	}

	seen := make(map[string]bool, len(testPackages))
	for _, name := range testPackages {
		if seen[name] {
			result = append(result, Drift{Name: name, Kind: DuplicateTestPackage})
			continue
		}
		seen[name] = true

		if !known[name] {
			result = append(result, Drift{Name: name, Kind: UnknownTestPackage})
		}
	}

	for _, pkg := range packages {
		if !seen[pkg.Name] {
			result = append(result, Drift{Name: pkg.Name, Kind: MissingTests})
		}
	}

	return result
}
