// safecall CLI - run supervised method calls against a class image
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/henrybell/cloud-debug-java/classfile"
	"github.com/henrybell/cloud-debug-java/config"
	"github.com/henrybell/cloud-debug-java/jvm"
	"github.com/henrybell/cloud-debug-java/native"
	"github.com/henrybell/cloud-debug-java/quota"
	"github.com/henrybell/cloud-debug-java/safecall"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	configPath := flag.String("config", "", "safecaller.toml policy file (applied on top of the built-in policy)")
	imagePath := flag.String("image", "", "CBOR class image (default: the built-in demo image)")
	storePath := flag.String("store", "", "SQLite class-file store (read-through cache over the image)")
	role := flag.String("role", config.RoleExpression, "Quota role: expression, pretty_printer, dynamic_log")
	recv := flag.String("recv", "", "Receiver value for instance methods")
	list := flag.Bool("list", false, "List the classes the bytecode source ships and exit")
	disasm := flag.String("disasm", "", "Disassemble a class (binary name) and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: safecall [options] [Class.method [args...]]\n\n")
		fmt.Fprintf(os.Stderr, "Calls a method under the safe-call policy: resolved against class\n")
		fmt.Fprintf(os.Stderr, "metadata, checked against the allowlist, then run natively or\n")
		fmt.Fprintf(os.Stderr, "interpreted under quota supervision. Without a call it runs a short\n")
		fmt.Fprintf(os.Stderr, "demonstration against the built-in image.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nArguments parse as int, long (L suffix), double, true/false, null,\n")
		fmt.Fprintf(os.Stderr, "or a string.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  safecall                                  # run the demonstration\n")
		fmt.Fprintf(os.Stderr, "  safecall com.example.Demo.sum 25          # interpreted loop\n")
		fmt.Fprintf(os.Stderr, "  safecall java.lang.Math.sqrt 2.0          # native call\n")
		fmt.Fprintf(os.Stderr, "  safecall -recv \"hello\" java.lang.String.length\n")
		fmt.Fprintf(os.Stderr, "  safecall -list                            # show shipped classes\n")
		fmt.Fprintf(os.Stderr, "  safecall -disasm com.example.Demo         # show bytecode\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(1, nil)
	}

	cfg := config.Default()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	classes, err := loadClasses(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	loader := make(classfile.MapLoader, len(classes))
	for _, cf := range classes {
		loader[cf.Signature] = cf
	}

	var source classfile.Loader = loader
	if *storePath != "" {
		store, err := classfile.OpenStore(*storePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		source = classfile.NewStoreLoader(store, loader)
		if *verbose {
			sigs, err := store.Signatures()
			if err == nil {
				fmt.Printf("Store %s holds %d class files\n", *storePath, len(sigs))
			}
		}
	}
	cache := classfile.NewCache(source)

	if *list {
		listClasses(classes)
		return
	}
	if *disasm != "" {
		if err := disassemble(cache, *disasm); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	reg := jvm.NewRegistry()
	if err := registerClasses(reg, classes); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// Methods shipped in the image run interpreted unless the policy
	// file says otherwise.
	for _, cf := range classes {
		for _, m := range cf.MethodMetadata() {
			cfg.AddRule(config.MethodRule{Class: m.ClassSignature, Name: m.Name, Action: config.ActionInterpret})
		}
	}

	caller := safecall.NewCaller(cfg, cfg.QuotaFor(*role), reg, cache, native.NewRuntime(reg))
	if cl := cfg.CostLimit(); cl != nil {
		caller.WithCostLimit(quota.NewLeakyBucket(cl.Capacity, cl.FillRate))
	}
	if *verbose {
		fmt.Printf("Caller %s with role %s (%d classes in the image)\n", caller.ID(), *role, len(classes))
	}

	if flag.NArg() > 0 {
		err = runCall(caller, reg, flag.Arg(0), *recv, flag.Args()[1:])
	} else {
		err = runDemo(caller, reg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Consumed %d interpreter instructions, %d class loads, %d objects created\n",
			caller.TotalInstructions(), caller.TotalClassesLoaded(), caller.TrackedObjects())
	}
}

func loadClasses(path string) ([]*classfile.ClassFile, error) {
	if path == "" {
		return demoClasses(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read image %s: %w", path, err)
	}
	return classfile.UnmarshalImage(data)
}

func listClasses(classes []*classfile.ClassFile) {
	for _, cf := range classes {
		fmt.Println(jvm.BinaryName(cf.Signature))
		for _, m := range cf.Methods {
			tag := ""
			if m.Static {
				tag = " static"
			}
			fmt.Printf("  %s%s%s\n", m.Name, m.Descriptor, tag)
		}
	}
}

func disassemble(cache *classfile.Cache, name string) error {
	cf, _, err := cache.Load(classSignature(name))
	if err != nil {
		return err
	}
	for i, m := range cf.Methods {
		if i > 0 {
			fmt.Println()
		}
		fmt.Print(classfile.Disassemble(m))
	}
	return nil
}

// runCall parses "com.example.Demo.sum" plus argument strings and
// invokes it. The method is picked by name and argument count; the
// orchestrator validates the rest.
func runCall(caller *safecall.Caller, reg *jvm.Registry, spec, recv string, rawArgs []string) error {
	dot := strings.LastIndexByte(spec, '.')
	if dot <= 0 || dot == len(spec)-1 {
		return fmt.Errorf("call %q is not of the form Class.method", spec)
	}
	classSig := classSignature(spec[:dot])
	name := spec[dot+1:]

	args := make([]jvm.Value, len(rawArgs))
	for i, raw := range rawArgs {
		args[i] = parseValue(reg, raw)
	}
	method, err := findMethod(reg, classSig, name, len(args))
	if err != nil {
		return err
	}
	source := jvm.Null()
	if recv != "" {
		source = parseValue(reg, recv)
	}

	fmt.Println(caller.Invoke(method, source, args))
	return nil
}

// runDemo walks through the orchestrator's behaviors against the demo
// image: an interpreted loop, a native call, interpreted code calling
// back into a native method, object creation with mutation of the
// created object, and the mutation veto protecting everything else.
func runDemo(caller *safecall.Caller, reg *jvm.Registry) error {
	show := func(label string, res jvm.Result) {
		fmt.Printf("%-42s %s\n", label, res)
	}

	sum, err := findMethod(reg, "Lcom/example/Demo;", "sum", 1)
	if err != nil {
		return err
	}
	show("com.example.Demo.sum(25)", caller.Invoke(sum, jvm.Null(), []jvm.Value{jvm.Int(25)}))

	sqrt, err := findMethod(reg, jvm.SigMath, "sqrt", 1)
	if err != nil {
		return err
	}
	show("java.lang.Math.sqrt(2.0)", caller.Invoke(sqrt, jvm.Null(), []jvm.Value{jvm.Double(2)}))

	greet, err := findMethod(reg, "Lcom/example/Demo;", "greet", 1)
	if err != nil {
		return err
	}
	show("com.example.Demo.greet(\"world\")",
		caller.Invoke(greet, jvm.Null(), []jvm.Value{jvm.Ref(reg.NewString("world"))}))

	of, err := findMethod(reg, "Lcom/example/Point;", "of", 2)
	if err != nil {
		return err
	}
	made := caller.Invoke(of, jvm.Null(), []jvm.Value{jvm.Int(3), jvm.Int(4)})
	show("com.example.Point.of(3, 4)", made)
	if !made.IsValue() {
		return nil
	}

	scale, err := findMethod(reg, "Lcom/example/Point;", "scale", 1)
	if err != nil {
		return err
	}
	norm, err := findMethod(reg, "Lcom/example/Point;", "normSquared", 0)
	if err != nil {
		return err
	}
	show("  .scale(2) on the created point", caller.Invoke(scale, made.Value(), []jvm.Value{jvm.Int(2)}))
	show("  .normSquared() after scaling", caller.Invoke(norm, made.Value(), nil))

	// The same mutation against an object the evaluation did not create
	// is refused before anything changes.
	pointCls, err := reg.FindClassBySignature("Lcom/example/Point;")
	if err != nil {
		return err
	}
	outside := jvm.NewObject(pointCls)
	show("  .scale(2) on a debuggee point", caller.Invoke(scale, jvm.Ref(outside), []jvm.Value{jvm.Int(2)}))
	return nil
}

// registerClasses builds resolver metadata for every class in the
// image, superclasses first. Superclasses outside the image must
// already be known to the registry.
func registerClasses(reg *jvm.Registry, classes []*classfile.ClassFile) error {
	bySig := make(map[string]*classfile.ClassFile, len(classes))
	for _, cf := range classes {
		bySig[cf.Signature] = cf
	}
	var ensure func(sig string, trail map[string]bool) (*jvm.Class, error)
	ensure = func(sig string, trail map[string]bool) (*jvm.Class, error) {
		if c, ok := reg.Lookup(sig); ok {
			return c, nil
		}
		cf, ok := bySig[sig]
		if !ok {
			return nil, fmt.Errorf("class %s is neither in the image nor built in", jvm.BinaryName(sig))
		}
		if trail[sig] {
			return nil, fmt.Errorf("superclass cycle through %s", jvm.BinaryName(sig))
		}
		trail[sig] = true
		superSig := cf.Super
		if superSig == "" {
			superSig = jvm.SigObject
		}
		super, err := ensure(superSig, trail)
		if err != nil {
			return nil, err
		}
		c := jvm.NewClass(sig, super, cf.MethodMetadata()...)
		reg.Register(c)
		return c, nil
	}
	for _, cf := range classes {
		if _, err := ensure(cf.Signature, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

// findMethod picks a declared method by name and argument count,
// searching the ancestry the way dispatch would.
func findMethod(reg *jvm.Registry, classSig, name string, argc int) (jvm.Method, error) {
	cls, err := reg.FindClassBySignature(classSig)
	if err != nil {
		return jvm.Method{}, err
	}
	for _, c := range cls.Ancestry() {
		for _, m := range c.Methods() {
			if m.Name != name {
				continue
			}
			if n, err := jvm.ParamCount(m.Descriptor); err == nil && n == argc {
				return m, nil
			}
		}
	}
	return jvm.Method{}, fmt.Errorf("class %s has no method %s taking %d arguments",
		jvm.BinaryName(classSig), name, argc)
}

func classSignature(binaryName string) string {
	return "L" + strings.ReplaceAll(binaryName, ".", "/") + ";"
}

func parseValue(reg *jvm.Registry, s string) jvm.Value {
	switch s {
	case "null":
		return jvm.Null()
	case "true":
		return jvm.Boolean(true)
	case "false":
		return jvm.Boolean(false)
	}
	if strings.HasSuffix(s, "L") || strings.HasSuffix(s, "l") {
		if v, err := strconv.ParseInt(s[:len(s)-1], 10, 64); err == nil {
			return jvm.Long(v)
		}
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v >= -1<<31 && v < 1<<31 {
			return jvm.Int(int32(v))
		}
		return jvm.Long(v)
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return jvm.Double(v)
	}
	return jvm.Ref(reg.NewString(s))
}

// demoClasses assembles the built-in image: a Point class with mutable
// fields and a Demo class exercising loops and nested native calls.
func demoClasses() []*classfile.ClassFile {
	const (
		pointSig = "Lcom/example/Point;"
		demoSig  = "Lcom/example/Demo;"
	)

	of := classfile.NewBuilder("of", "(II)Lcom/example/Point;").SetStatic(true)
	of.New(pointSig)
	of.Emit(classfile.OpDup)
	of.Load(0)
	of.Field(classfile.OpPutField, classfile.FieldRef{Class: pointSig, Name: "x", Descriptor: "I"})
	of.Emit(classfile.OpDup)
	of.Load(1)
	of.Field(classfile.OpPutField, classfile.FieldRef{Class: pointSig, Name: "y", Descriptor: "I"})
	of.Emit(classfile.OpReturnValue)

	getX := classfile.NewBuilder("getX", "()I")
	getX.Load(0)
	getX.Field(classfile.OpGetField, classfile.FieldRef{Class: pointSig, Name: "x", Descriptor: "I"})
	getX.Emit(classfile.OpReturnValue)

	getY := classfile.NewBuilder("getY", "()I")
	getY.Load(0)
	getY.Field(classfile.OpGetField, classfile.FieldRef{Class: pointSig, Name: "y", Descriptor: "I"})
	getY.Emit(classfile.OpReturnValue)

	norm := classfile.NewBuilder("normSquared", "()I")
	for _, field := range []string{"x", "y"} {
		for i := 0; i < 2; i++ {
			norm.Load(0)
			norm.Field(classfile.OpGetField, classfile.FieldRef{Class: pointSig, Name: field, Descriptor: "I"})
		}
		norm.Emit(classfile.OpMul)
	}
	norm.Emit(classfile.OpAdd)
	norm.Emit(classfile.OpReturnValue)

	scale := classfile.NewBuilder("scale", "(I)V")
	for _, field := range []string{"x", "y"} {
		scale.Load(0)
		scale.Load(0)
		scale.Field(classfile.OpGetField, classfile.FieldRef{Class: pointSig, Name: field, Descriptor: "I"})
		scale.Load(1)
		scale.Emit(classfile.OpMul)
		scale.Field(classfile.OpPutField, classfile.FieldRef{Class: pointSig, Name: field, Descriptor: "I"})
	}
	scale.Emit(classfile.OpReturn)

	translate := classfile.NewBuilder("translate", "(II)Lcom/example/Point;")
	translate.Load(0)
	translate.Field(classfile.OpGetField, classfile.FieldRef{Class: pointSig, Name: "x", Descriptor: "I"})
	translate.Load(1)
	translate.Emit(classfile.OpAdd)
	translate.Load(0)
	translate.Field(classfile.OpGetField, classfile.FieldRef{Class: pointSig, Name: "y", Descriptor: "I"})
	translate.Load(2)
	translate.Emit(classfile.OpAdd)
	translate.Invoke(classfile.OpInvokeStatic, classfile.MethodRef{Class: pointSig, Name: "of", Descriptor: "(II)Lcom/example/Point;"})
	translate.Emit(classfile.OpReturnValue)

	// sum adds 1..n: locals are n, the running total, and the counter.
	sum := classfile.NewBuilder("sum", "(I)I").SetStatic(true)
	sum.PushInt(0)
	sum.Store(1)
	sum.PushInt(1)
	sum.Store(2)
	exit := sum.NewLabel()
	loop := sum.NewLabel()
	sum.Mark(loop)
	sum.Load(2)
	sum.Load(0)
	sum.Emit(classfile.OpCmpGt)
	sum.EmitJump(classfile.OpJumpIfNonZero, exit)
	sum.Load(1)
	sum.Load(2)
	sum.Emit(classfile.OpAdd)
	sum.Store(1)
	sum.Load(2)
	sum.PushInt(1)
	sum.Emit(classfile.OpAdd)
	sum.Store(2)
	sum.EmitJump(classfile.OpJump, loop)
	sum.Mark(exit)
	sum.Load(1)
	sum.Emit(classfile.OpReturnValue)

	greet := classfile.NewBuilder("greet", "(Ljava/lang/String;)Ljava/lang/String;").SetStatic(true)
	greet.PushString("hello, ")
	greet.Load(0)
	greet.Invoke(classfile.OpInvokeVirtual, classfile.MethodRef{
		Class: jvm.SigString, Name: "concat", Descriptor: "(Ljava/lang/String;)Ljava/lang/String;",
	})
	greet.Emit(classfile.OpReturnValue)

	return []*classfile.ClassFile{
		{
			Signature: pointSig,
			Super:     jvm.SigObject,
			Methods: []*classfile.MethodBody{
				of.Build(), getX.Build(), getY.Build(), norm.Build(),
				scale.Build(), translate.Build(),
			},
		},
		{
			Signature: demoSig,
			Super:     jvm.SigObject,
			Methods:   []*classfile.MethodBody{sum.Build(), greet.Build()},
		},
	}
}
