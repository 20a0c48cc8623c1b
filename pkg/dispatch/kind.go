package dispatch

import (
	"errors"
	"fmt"
)

// Kind identifies one operation in the tool catalog.
type Kind int

const (
	ListTests Kind = iota
	ReadTest
	CreateTest
	UpdateTest
	RunTest
	RunTestUI
	GeneratePageObject
	GenerateTestData
	AnalyzeTest
	GetTestResults
	ShowTrace
	GetConfig
	UpdateConfig
	Codegen
	InstallBrowsers

	kindCount
)

var kindNames = [kindCount]string{
	ListTests:          "list_tests",
	ReadTest:           "read_test",
	CreateTest:         "create_test",
	UpdateTest:         "update_test",
	RunTest:            "run_test",
	RunTestUI:          "run_test_ui",
	GeneratePageObject: "generate_page_object",
	GenerateTestData:   "generate_test_data",
	AnalyzeTest:        "analyze_test",
	GetTestResults:     "get_test_results",
	ShowTrace:          "show_trace",
	GetConfig:          "get_config",
	UpdateConfig:       "update_config",
	Codegen:            "codegen",
	InstallBrowsers:    "install_browsers",
}

// ErrUnknownOperation is returned for tool or resource names outside the
// catalog.
var ErrUnknownOperation = errors.New("unknown operation")

// String returns the wire name of the operation.
func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a wire name to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// Kinds returns every operation in catalog order.
func Kinds() []Kind {
	kinds := make([]Kind, kindCount)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

// Profile selects which part of the catalog a server exposes.
type Profile string

const (
	// ProfileBasic covers reading, writing and running tests.
	ProfileBasic Profile = "basic"

	// ProfileFull exposes every operation and resource.
	ProfileFull Profile = "full"
)

var basicKinds = []Kind{ListTests, ReadTest, RunTest, CreateTest, UpdateTest, GetTestResults, GetConfig}

// ParseProfile validates a profile name. An empty name selects the full
// profile.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileBasic:
		return ProfileBasic, nil
	case ProfileFull, "":
		return ProfileFull, nil
	}
	return "", fmt.Errorf("invalid profile %q (must be 'basic' or 'full')", s)
}

// Kinds returns the operations p exposes.
func (p Profile) Kinds() []Kind {
	if p == ProfileBasic {
		return append([]Kind(nil), basicKinds...)
	}
	return Kinds()
}

// Resources returns the resources p exposes.
func (p Profile) Resources() []Resource {
	if p == ProfileBasic {
		return []Resource{resourceCatalog[TestsResource], resourceCatalog[ConfigResource]}
	}
	return append([]Resource(nil), resourceCatalog[:]...)
}
