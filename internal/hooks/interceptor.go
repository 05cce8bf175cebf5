package hooks

import "github.com/zboralski/raspguard/internal/jvm"

// OnNativeMethodBind is the NativeMethodBind callback. For a watched method
// it captures address on the first event and proposes the trampoline; for
// anything else it leaves newAddress alone.
//
// Capture is first-writer-wins, so a repeated bind event (for instance after
// RegisterNatives) never replaces the recorded original.
func (g *Guard) OnNativeMethodBind(env jvm.Env, method jvm.MethodID, address jvm.Entry, newAddress *jvm.Entry) {
	if g.ti == nil || newAddress == nil {
		return
	}

	name, _, err := g.ti.GetMethodName(method)
	if err != nil || name == "" {
		return
	}
	class, err := g.ti.GetMethodDeclaringClass(method)
	if err != nil {
		return
	}
	classSig, err := g.ti.GetClassSignature(class)
	if err != nil || classSig == "" {
		return
	}

	sym := g.registry.Lookup(classSig, name)
	if sym == nil {
		return
	}

	g.log.Hooked(classSig, name)
	if sym.Capture(address) {
		g.log.Captured(sym.Name, address)
	}
	*newAddress = sym.Trampoline
	g.metrics.Bind(sym.Name)
}
