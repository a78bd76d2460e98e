package pipeline

import "github.com/bamsammich/winstick/internal/proc"

// Stage indexes, in execution order.
const (
	StageValidate = iota + 1
	StagePackageManager
	StageImagingTool
	StageCopyTool
	StageUnmount
	StageErase
	StageMountWait
	StageAttach
	StageCopy
	StageInstallImage
	StageDetach
	StageEject
)

// Stages is the fixed stage table. Only the pre-emptive unmount may fail
// without stopping the run.
var Stages = [...]proc.Stage{
	{Index: StageValidate, Label: "validate"},
	{Index: StagePackageManager, Label: "package manager"},
	{Index: StageImagingTool, Label: "wimlib"},
	{Index: StageCopyTool, Label: "rsync"},
	{Index: StageUnmount, Label: "unmount", AllowFailure: true},
	{Index: StageErase, Label: "erase"},
	{Index: StageMountWait, Label: "mount wait"},
	{Index: StageAttach, Label: "attach image"},
	{Index: StageCopy, Label: "copy files"},
	{Index: StageInstallImage, Label: "install image"},
	{Index: StageDetach, Label: "detach image"},
	{Index: StageEject, Label: "eject"},
}

// StageCount is the number of stages in a run.
const StageCount = len(Stages)

func stage(i int) proc.Stage { return Stages[i-1] }
