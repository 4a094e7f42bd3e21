// Package workspace is the entry point of recflow.
//
// A Workspace is opened from a workspace file (or built from a
// config.WorkspaceConfig) and hands out RecordCollections and Records. Both
// are views over a scope of the task/modality topology: they discover record
// ids on disk, resolve step status, read record logs and submit runs to the
// configured scheduler.
//
//	ws, err := workspace.Open("/data/study", workspace.WithRegistry(reg))
//	if err != nil {
//		return err
//	}
//	defer ws.Close(ctx)
//
//	eeg, _ := ws.Records().Sub("", "EEG")
//	report, err := eeg.Run(ctx, step.RunOptions{})
package workspace
