package actions

func init() {
	RegisterActionFactory("GenericElementAction", func(p Parameters) (Action, error) {
		a := &GenericElementAction{}
		if err := decode(p.Values, a); err != nil {
			return nil, err
		}
		a.Args = p.Args
		return a, a.validate()
	})
	RegisterActionFactory("GenericShadowDomElementAction", func(p Parameters) (Action, error) {
		a := &GenericShadowDomElementAction{}
		if err := decode(p.Values, a); err != nil {
			return nil, err
		}
		a.Args = p.Args
		return a, a.validate()
	})
	RegisterActionFactory("GenericDriverAction", func(p Parameters) (Action, error) {
		a := &GenericDriverAction{}
		if err := decode(p.Values, a); err != nil {
			return nil, err
		}
		a.Args = p.Args
		return a, required("method_name", a.MethodName)
	})
	RegisterActionFactory("DriverSwitchToAction", func(p Parameters) (Action, error) {
		a := &DriverSwitchToAction{}
		if err := decode(p.Values, a); err != nil {
			return nil, err
		}
		a.Args = p.Args
		return a, required("method_name", a.MethodName)
	})
	RegisterActionFactory("TypeText", func(p Parameters) (Action, error) {
		a := &TypeText{}
		if err := decode(p.Values, a); err != nil {
			return nil, err
		}
		a.Args = p.Args
		return a, nil
	})

	RegisterActionFactory("MoveToElement", newFixed[MoveToElement](nil))
	RegisterActionFactory("WaitForElement", newFixed(func(a *WaitForElement) { a.Delay = 10 }))
	RegisterActionFactory("ClickElementToDownload", newFixed(func(a *ClickElementToDownload) {
		a.Delay = 30
		a.Timeout = 60
	}))
	RegisterActionFactory("SwitchToWindow", newFixed[SwitchToWindow](nil))
	RegisterActionFactory("SwitchToPopup", newFixed(func(a *SwitchToPopup) { a.Timeout = 30 }))
	RegisterActionFactory("SwitchToMainWindow", newFixed[SwitchToMainWindow](nil))
	RegisterActionFactory("Wait", newFixed[Wait](nil))
	RegisterActionFactory("BasicLogin", newFixed[BasicLogin](nil))
	RegisterActionFactory("BreakBlockExecution", newFixed[BreakBlockExecution](nil))
	RegisterActionFactory("ExitAction", newFixed[ExitAction](nil))
	RegisterActionFactory("ConditionalAction", newConditionalAction)
	RegisterActionFactory("PrintHtmlPage", newFixed[PrintHtmlPage](nil))
	RegisterActionFactory("DownloadPageContent", newFixed(func(a *DownloadPageContent) { a.UseStreamGet = true }))
	RegisterActionFactory("SaveCookieFile", newFixed[SaveCookieFile](nil))
	RegisterActionFactory("TakeScreenshot", newFixed(func(a *TakeScreenshot) { a.Folder = "screens" }))
}

type validator interface {
	validate() error
}

// newFixed builds a factory for a kind without positional arguments. defaults
// runs before decoding so configured values override it.
func newFixed[T any, PT interface {
	*T
	Action
}](defaults func(PT)) Factory {
	return func(p Parameters) (Action, error) {
		a := PT(new(T))
		if defaults != nil {
			defaults(a)
		}
		if err := decodeFixed(p, a); err != nil {
			return nil, err
		}
		if v, ok := any(a).(validator); ok {
			if err := v.validate(); err != nil {
				return nil, err
			}
		}
		return a, nil
	}
}

func (a *MoveToElement) validate() error { return required("xpath", a.XPath) }

func (a *WaitForElement) validate() error { return required("xpath", a.XPath) }

func (a *ClickElementToDownload) validate() error { return required("xpath", a.XPath) }

func (a *BasicLogin) validate() error { return required("user", a.User) }

func (a *PrintHtmlPage) validate() error { return a.parseLevel() }

func (a *DownloadPageContent) validate() error {
	return required("result_file_name", a.ResultFileName)
}

func (a *TakeScreenshot) validate() error { return required("name", a.Name) }
