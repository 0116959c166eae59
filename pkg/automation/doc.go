// Package automation runs the external automation collaborator.
//
// A collaborator is a Starlark module located on a search path. Setup executes it and calls its
// setup() function. Scripts see the package registry through packages_list(), test_packages_list()
// and package_dir(), and can declare tasks bound to a registered package. run_packages() then runs
// a task for each package in registry order. Task commands are executed by mvdan.cc/sh.
package automation
