//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds every package and the mldsample binary into ./bin.
func (Build) All() error {
	if _, err := executeCmd("go", withArgs("build", "./..."), withStream()); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", "bin/mldsample", "./cmd/mldsample"), withStream())
	return err
}

// Runs go vet on all packages.
func Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

// Runs the test suite.
func Test() error {
	args := []string{"test", "./..."}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	_, err := executeCmd("go", withArgs(args...), withStream())
	return err
}

// Writes the procedural rig into ./testdata/synth and prints its info.
func Synth() error {
	mg.Deps(Build.All)
	if _, err := executeCmd("bin/mldsample", withArgs("synth", "-cap", "testdata/synth"), withStream()); err != nil {
		return err
	}
	_, err := executeCmd("bin/mldsample", withArgs("info", "testdata/synth/deformer.yaml"), withStream())
	return err
}
