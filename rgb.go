package gany

// RGB colors its parent's meshes with a three component input read as red, green and blue.
type RGB struct {
	*chain
}

var _ Effect = (*RGB)(nil)

func NewRGB(parent Blocker, in Input) (*RGB, error) {
	c, err := newChain(parent, in, 3)
	if err != nil {
		return nil, err
	}
	rgb := &RGB{chain: c}
	err = rgb.combine(SlotColor, OpAssign, rgb.inputRef)
	if err != nil {
		return nil, err
	}
	err = rgb.init()
	if err != nil {
		return nil, err
	}
	return rgb, nil
}

func (rgb *RGB) Slots() []Slot { return []Slot{SlotColor} }
