package core

// ChooseChain is the fork-choice rule. When both chains are valid the strictly
// longer one wins and ties keep local. When only one is valid it wins
// regardless of length. When neither is valid an *IrreconcilableError is
// returned and no chain is chosen.
func (v *Validator) ChooseChain(local, remote []*Block) ([]*Block, error) {
	takeRemote, err := v.preferRemote(local, remote)
	if err != nil {
		return nil, err
	}
	if takeRemote {
		return remote, nil
	}
	return local, nil
}

func (v *Validator) preferRemote(local, remote []*Block) (bool, error) {
	localErr := v.ValidateChain(local)
	remoteErr := v.ValidateChain(remote)

	switch {
	case localErr == nil && remoteErr == nil:
		return len(remote) > len(local), nil
	case localErr == nil:
		return false, nil
	case remoteErr == nil:
		return true, nil
	default:
		return false, &IrreconcilableError{
			LocalLen:  len(local),
			RemoteLen: len(remote),
			LocalErr:  localErr,
			RemoteErr: remoteErr,
		}
	}
}
