package files

import (
	"ledgernode/core/dispatch"
	"ledgernode/core/types"
)

// UpdateHandler replaces file contents. System files are created on their
// first update; other files must already exist.
type UpdateHandler struct{}

// AppendHandler appends to file contents.
type AppendHandler struct{}

// SystemDeleteHandler marks a file deleted on behalf of a privileged payer.
type SystemDeleteHandler struct{}

func checkExists(ctx *dispatch.PreHandleContext, id types.FileID) error {
	if id == 0 {
		return &dispatch.PreCheckError{Code: types.ResponseInvalidFileID}
	}
	if ctx.Config.Global.IsSystemFile(id) {
		return nil
	}
	file, err := ctx.View.GetFile(id)
	if err != nil {
		return err
	}
	if file == nil || file.Deleted {
		return &dispatch.PreCheckError{Code: types.ResponseInvalidFileID}
	}
	return nil
}

func maxBytes(ctx *dispatch.HandleContext) int {
	return ctx.Config.Global.Privileged.MaxSystemFileBytes
}

func (UpdateHandler) PreHandle(ctx *dispatch.PreHandleContext) error {
	return checkExists(ctx, ctx.Body.FileUpdate.File)
}

func (UpdateHandler) Handle(ctx *dispatch.HandleContext) error {
	op := ctx.Body.FileUpdate
	sp := ctx.Store()
	file, err := sp.GetFile(op.File)
	if err != nil {
		return err
	}
	if file == nil {
		if !ctx.Config.Global.IsSystemFile(op.File) {
			return dispatch.NewHandleError(types.ResponseInvalidFileID, "file %s", op.File)
		}
		file = &types.File{ID: op.File}
	}
	if file.Deleted {
		return dispatch.NewHandleError(types.ResponseInvalidFileID, "file %s deleted", op.File)
	}
	if max := maxBytes(ctx); max > 0 && len(op.Contents) > max {
		return dispatch.NewHandleError(types.ResponseInvalidTransactionBody, "contents exceed %d bytes", max)
	}
	file.Contents = append([]byte(nil), op.Contents...)
	return sp.PutFile(file)
}

func (AppendHandler) PreHandle(ctx *dispatch.PreHandleContext) error {
	if len(ctx.Body.FileAppend.Contents) == 0 {
		return &dispatch.PreCheckError{Code: types.ResponseFileContentEmpty}
	}
	return checkExists(ctx, ctx.Body.FileAppend.File)
}

func (AppendHandler) Handle(ctx *dispatch.HandleContext) error {
	op := ctx.Body.FileAppend
	if err := dispatch.Validate(len(op.Contents) > 0, types.ResponseFileContentEmpty); err != nil {
		return err
	}
	sp := ctx.Store()
	file, err := sp.GetFile(op.File)
	if err != nil {
		return err
	}
	if file == nil || file.Deleted {
		return dispatch.NewHandleError(types.ResponseInvalidFileID, "file %s", op.File)
	}
	if max := maxBytes(ctx); max > 0 && len(file.Contents)+len(op.Contents) > max {
		return dispatch.NewHandleError(types.ResponseInvalidTransactionBody, "contents exceed %d bytes", max)
	}
	file.Contents = append(file.Contents, op.Contents...)
	return sp.PutFile(file)
}

func (SystemDeleteHandler) PreHandle(ctx *dispatch.PreHandleContext) error {
	return checkExists(ctx, ctx.Body.SystemDelete.File)
}

func (SystemDeleteHandler) Handle(ctx *dispatch.HandleContext) error {
	op := ctx.Body.SystemDelete
	sp := ctx.Store()
	file, err := sp.GetFile(op.File)
	if err != nil {
		return err
	}
	if file == nil || file.Deleted {
		return dispatch.NewHandleError(types.ResponseInvalidFileID, "file %s", op.File)
	}
	file.Deleted = true
	file.Expiry = op.ExpirySeconds
	return sp.PutFile(file)
}

// Register installs the file handlers.
func Register(r *dispatch.Registry) *dispatch.Registry {
	return r.
		Register(types.FunctionalityFileUpdate, UpdateHandler{}).
		Register(types.FunctionalityFileAppend, AppendHandler{}).
		Register(types.FunctionalitySystemDelete, SystemDeleteHandler{})
}
