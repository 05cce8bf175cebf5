package hooks

import (
	"fmt"

	"github.com/zboralski/raspguard/internal/decode"
	"github.com/zboralski/raspguard/internal/jvm"
	"github.com/zboralski/raspguard/internal/policy"
)

// ProcessImplCreate replaces Java_java_lang_ProcessImpl_create. Its
// parameter list matches the native exactly so an allowed call is forwarded
// with every argument as received.
func (g *Guard) ProcessImplCreate(env jvm.Env, clazz jvm.Class, cmd, envBlock, dir jvm.String, stdHandles jvm.LongArray, redirectErrorStream bool) int64 {
	c := decode.DecodeCommand(env, cmd)
	text := c.Text()

	if c.Present() {
		g.log.Intercepted(g.create.Name, fmt.Sprintf("cmd='%s'", text))
		if kw, ok := g.policy.Match(text); ok {
			g.block(env, g.create, text, kw, ReasonPolicy)
			return CreateFailed
		}
	} else {
		g.log.Intercepted(g.create.Name, "but cmd is NULL")
	}

	orig, _ := g.create.Original()
	fn, ok := asCreate(orig)
	if !ok {
		g.block(env, g.create, text, "", ReasonOriginalMissing)
		return CreateFailed
	}
	g.metrics.Decision(g.create.Name, policy.Allow.String())
	return fn(env, clazz, cmd, envBlock, dir, stdHandles, redirectErrorStream)
}

// UNIXProcessForkAndExec replaces Java_java_lang_UNIXProcess_forkAndExec.
func (g *Guard) UNIXProcessForkAndExec(env jvm.Env, process jvm.Object, mode int32, helperPath, prog, argBlock jvm.ByteArray, argc int32, envBlock jvm.ByteArray, envc int32, dir jvm.ByteArray, fds jvm.IntArray, redirectErrorStream bool) int32 {
	f := decode.DecodeForkExec(env, helperPath, prog, argBlock)
	text := f.Text()

	g.log.Intercepted(g.forkExec.Name, fmt.Sprintf("mode=%d helper='%s' prog='%s' args='%s'",
		mode, f.Helper(), f.Program(), f.Args()))

	if kw, ok := g.policy.Match(text); ok {
		g.block(env, g.forkExec, text, kw, ReasonPolicy)
		return ForkAndExecFailed
	}

	orig, _ := g.forkExec.Original()
	fn, ok := asForkAndExec(orig)
	if !ok {
		g.block(env, g.forkExec, text, "", ReasonOriginalMissing)
		return ForkAndExecFailed
	}
	g.metrics.Decision(g.forkExec.Name, policy.Allow.String())
	return fn(env, process, mode, helperPath, prog, argBlock, argc, envBlock, envc, dir, fds, redirectErrorStream)
}

// asCreate accepts the named function type or its unnamed equivalent.
func asCreate(e jvm.Entry) (jvm.ProcessImplCreateFunc, bool) {
	switch fn := e.(type) {
	case jvm.ProcessImplCreateFunc:
		return fn, fn != nil
	case func(jvm.Env, jvm.Class, jvm.String, jvm.String, jvm.String, jvm.LongArray, bool) int64:
		return fn, fn != nil
	}
	return nil, false
}

func asForkAndExec(e jvm.Entry) (jvm.ForkAndExecFunc, bool) {
	switch fn := e.(type) {
	case jvm.ForkAndExecFunc:
		return fn, fn != nil
	case func(jvm.Env, jvm.Object, int32, jvm.ByteArray, jvm.ByteArray, jvm.ByteArray, int32, jvm.ByteArray, int32, jvm.ByteArray, jvm.IntArray, bool) int32:
		return fn, fn != nil
	}
	return nil, false
}
