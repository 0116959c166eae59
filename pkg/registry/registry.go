// Package registry holds the packages tracked by the build and test tooling.
//
// The package table and the test table are kept as two separate lists on purpose. Nothing
// here keeps them in sync; Audit reports drift but the accessors never call it.
package registry

// Package describes a single package and its source directory relative to the repository root
type Package struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

var packageTable = [...]Package{
	{Name: "com.unity.render-pipelines.core", Path: "com.unity.render-pipelines.core"},
	{Name: "com.unity.render-pipelines.lightweight", Path: "com.unity.render-pipelines.lightweight"},
	{Name: "com.unity.render-pipelines.high-definition", Path: "com.unity.render-pipelines.high-definition"},
	{Name: "com.unity.shadergraph", Path: "com.unity.shadergraph"},
}

var testPackageTable = [...]string{
	"com.unity.render-pipelines.core",
	"com.unity.render-pipelines.lightweight",
	"com.unity.render-pipelines.high-definition",
	"com.unity.shadergraph",
}

// Packages returns all registered packages in their declared order.
// The returned slice is a fresh copy; callers may modify it.
func Packages() []Package {
	result := make([]Package, len(packageTable))
	copy(result, packageTable[:])
	return result
}

// TestPackages returns the names of all packages that have tests, in their declared order.
func TestPackages() []string {
	result := make([]string, len(testPackageTable))
	copy(result, testPackageTable[:])
	return result
}

// Lookup returns the package registered under name
func Lookup(name string) (Package, bool) {
	for _, pkg := range packageTable {
		if pkg.Name == name {
			return pkg, true
		}
	}

	return Package{}, false
}
